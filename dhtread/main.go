package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/prometheus/common/log"

	"github.com/blesswinsamuel/dht11_exporter/dht"
)

var (
	pinName     = flag.String("pin", "P1_7", "data pin name")
	samplesLog2 = flag.Int("samples_log2", 0, "average 2^n reads (0-14)")
	retries     = flag.Int("retries", 11, "read attempts when not averaging")
)

func main() {
	flag.Parse()

	if err := dht.HostInit(); err != nil {
		log.Fatal(err)
	}
	pin, err := dht.PeriphPinByName(*pinName)
	if err != nil {
		log.Fatal(err)
	}
	d := dht.NewDHT(pin, dht.SystemClock{})

	var humidity, temperature int16
	var status dht.Status
	if *samplesLog2 > 0 {
		status = d.ReadAveragedBlocking(*samplesLog2, &humidity, &temperature)
	} else {
		var retried int
		retried, status = d.ReadRetry(*retries, &humidity, &temperature)
		if retried > 0 {
			fmt.Printf("retried %d times\n", retried)
		}
	}
	if status != dht.Success {
		fmt.Println("Read error:", status)
		os.Exit(1)
	}

	fmt.Printf("humidity: %v (0x%04X)\n", dht.DecodeFixed(humidity), uint16(humidity))
	fmt.Printf("temperature: %v (0x%04X)\n", dht.DecodeFixed(temperature), uint16(temperature))
}
