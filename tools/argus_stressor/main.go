// argus/tools/argus_stressor/main.go

// argus_stressor fires match queries at a running argusd dashboard to
// exercise the caches under load.
package main

import (
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"
)

var (
	dashboardURL string
	queryRate    int
	rulesetID    string
	hosts        []string
	services     []string
)

func init() {
	flag.StringVar(&dashboardURL, "dashboard", "http://localhost:8090", "Dashboard base URL")
	flag.IntVar(&queryRate, "rate", 10, "Number of match queries per second")
	flag.StringVar(&rulesetID, "ruleset", "cpu_thresholds:v1", "Ruleset to query")
	flag.Parse()

	hosts = []string{"web01", "web02", "db01", "test01"}
	services = []string{"", "CPU load", "Memory", "Filesystem /"}
}

func main() {
	fmt.Printf("Querying %s at a rate of %d per second\n", dashboardURL, queryRate)

	ticker := time.NewTicker(time.Second / time.Duration(queryRate))
	defer ticker.Stop()

	for range ticker.C {
		host := hosts[rand.Intn(len(hosts))]
		service := services[rand.Intn(len(services))]

		query := url.Values{}
		query.Set("ruleset", rulesetID)
		query.Set("host", host)
		if service != "" {
			query.Set("service", service)
		}

		resp, err := http.Get(dashboardURL + "/match?" + query.Encode())
		if err != nil {
			fmt.Printf("Error querying dashboard: %v\n", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			fmt.Printf("Error reading response: %v\n", err)
			continue
		}

		fmt.Printf("%s %s/%s -> %s\n", rulesetID, host, service, string(body))
	}
}
