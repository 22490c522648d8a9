package main

import (
	"flag"
	"fmt"
	"net/http"
	"time"
)

// Usage example on the command line:
// > go run main.go -url http://localhost:8080/api
func main() {
	baseURL := flag.String("url", "http://localhost:8080/api", "base URL of the personas REST API")
	interval := flag.Duration("interval", 5*time.Second, "time between two attempts")
	flag.Parse()

	var totalWaitTime time.Duration
	for {
		res, err := http.Get(*baseURL + "/personas")
		if err == nil {
			res.Body.Close()
			// An empty table is answered with NOT FOUND, which still means the service is up.
			if res.StatusCode == http.StatusOK || res.StatusCode == http.StatusNotFound {
				fmt.Println(res.Status)
				break
			}
			fmt.Println(res.Status)
		} else {
			fmt.Println(err)
		}
		totalWaitTime += *interval
		fmt.Printf("Waiting %s", totalWaitTime)
		fmt.Println()
		time.Sleep(*interval)
	}
}
