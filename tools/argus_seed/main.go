// argus/tools/argus_seed/main.go

// argus_seed loads a demo host universe and a couple of rulesets into
// Redis and then offers a small CLI for editing host tags, so a running
// argusd can be poked at interactively.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"kwalsh/argus/pkg/matcher"
	"kwalsh/argus/pkg/ruleset"
	"kwalsh/argus/pkg/store"
)

func main() {
	s := store.NewRedisStore("localhost:6379", "", 0)
	if err := seedDemoData(s); err != nil {
		fmt.Printf("Error seeding demo data: %v\n", err)
		os.Exit(1)
	}
	startCLI(s)
}

func demoUniverse() *matcher.HostUniverse {
	return &matcher.HostUniverse{
		HostTags: map[ruleset.HostName]map[ruleset.TaggroupID]ruleset.TagID{
			"web01":  {"criticality": "prod", "networking": "dmz"},
			"web02":  {"criticality": "prod", "networking": "dmz"},
			"db01":   {"criticality": "prod", "networking": "lan"},
			"test01": {"criticality": "test", "networking": "lan"},
		},
		HostPaths: map[ruleset.HostName]string{
			"web01":  "/dc1/web/",
			"web02":  "/dc1/web/",
			"db01":   "/dc1/db/",
			"test01": "/lab/",
		},
		AllConfiguredHosts: []ruleset.HostName{"web01", "web02", "db01", "test01"},
	}
}

func demoRulesets() []*ruleset.Ruleset {
	return []*ruleset.Ruleset{
		ruleset.NewRuleset("cpu_thresholds:v1", []ruleset.Rule{
			{
				ID:    "prod-cpu",
				Value: map[string]interface{}{"warn": 80, "crit": 90},
				Condition: ruleset.Condition{
					HostTags: ruleset.TagConditions{"criticality": ruleset.TagIs{Tag: "prod"}},
				},
			},
			{
				ID:        "default-cpu",
				Value:     map[string]interface{}{"warn": 90, "crit": 95},
				Condition: ruleset.Condition{},
			},
		}),
		ruleset.NewRuleset("notifications_enabled:v1", []ruleset.Rule{
			{
				ID:    "silence-lab",
				Value: false,
				Condition: ruleset.Condition{
					HostFolder: "/lab/",
				},
			},
			{
				ID:        "default-on",
				Value:     true,
				Condition: ruleset.Condition{},
			},
		}),
	}
}

func seedDemoData(s store.Store) error {
	if err := s.SaveUniverse(demoUniverse()); err != nil {
		return err
	}
	fmt.Println("Stored demo universe (4 hosts)")

	for _, rs := range demoRulesets() {
		if err := s.SaveRuleset(rs); err != nil {
			return err
		}
		fmt.Printf("Stored ruleset %s\n", rs.ID)
	}

	return s.PublishReload("demo data seeded")
}

func startCLI(s store.Store) {
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("Enter command (tag <host> <group> <tag>, or exit): ")
		input, _ := reader.ReadString('\n')
		input = strings.TrimSpace(input)

		if input == "exit" {
			break
		}

		if err := processCommand(s, input); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
}

func processCommand(s store.Store, input string) error {
	parts := strings.Fields(input)
	if len(parts) != 4 || parts[0] != "tag" {
		return fmt.Errorf("invalid command. Use 'tag <host> <group> <tag>'")
	}

	hostname := ruleset.HostName(parts[1])
	group := ruleset.TaggroupID(parts[2])
	tag := ruleset.TagID(parts[3])

	universe, err := s.LoadUniverse()
	if err != nil {
		return err
	}

	hostTags, ok := universe.HostTags[hostname]
	if !ok {
		return fmt.Errorf("unknown host %s", hostname)
	}
	hostTags[group] = tag

	if err := s.SaveUniverse(universe); err != nil {
		return err
	}
	fmt.Printf("Set %s/%s to %s\n", hostname, group, tag)

	return s.PublishReload(fmt.Sprintf("tag changed on %s", hostname))
}
