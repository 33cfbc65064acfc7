// argus/tools/host_gen/main.go

// host_gen generates a random host universe plus matching rulesets, for
// seeding test and benchmark environments.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"kwalsh/argus/pkg/matcher"
	"kwalsh/argus/pkg/ruleset"
)

var tagGroups = map[string][]string{
	"criticality": {"prod", "dev", "test", ""},
	"networking":  {"lan", "wan", "dmz"},
	"agent":       {"cmk-agent", "snmp", "none"},
	"os":          {"linux", "windows", "aix"},
}

var folders = []string{
	"/", "/dc1/", "/dc1/row1/", "/dc1/row2/", "/dc2/", "/cloud/aws/", "/cloud/azure/",
}

var serviceNames = []string{
	"CPU load", "CPU utilization", "Memory", "Filesystem /", "Filesystem /var",
	"Interface eth0", "Interface eth1", "Uptime", "NTP Time", "Postfix Queue",
}

func parseFlags(args []string) (int, int, string, string) {
	fs := flag.NewFlagSet("host_gen", flag.ExitOnError)
	numHosts := fs.Int("hosts", 1000, "Number of hosts to generate")
	numRules := fs.Int("rules", 100, "Number of rules per generated ruleset")
	universeFile := fs.String("universe", "generated_universe.json", "Universe output file name")
	rulesetFile := fs.String("ruleset", "generated_ruleset.json", "Ruleset output file name")
	fs.Parse(args)
	return *numHosts, *numRules, *universeFile, *rulesetFile
}

func generateHostname(index int) ruleset.HostName {
	return ruleset.HostName(fmt.Sprintf("%s-%04d", gofakeit.Word(), index))
}

func generateUniverse(numHosts int) matcher.HostUniverse {
	universe := matcher.HostUniverse{
		HostTags:  map[ruleset.HostName]map[ruleset.TaggroupID]ruleset.TagID{},
		HostPaths: map[ruleset.HostName]string{},
	}

	for i := 0; i < numHosts; i++ {
		hostname := generateHostname(i)
		hostTags := map[ruleset.TaggroupID]ruleset.TagID{}
		for group, choices := range tagGroups {
			hostTags[ruleset.TaggroupID(group)] = ruleset.TagID(choices[rand.Intn(len(choices))])
		}
		universe.HostTags[hostname] = hostTags
		universe.HostPaths[hostname] = folders[rand.Intn(len(folders))]
		universe.AllConfiguredHosts = append(universe.AllConfiguredHosts, hostname)
	}
	return universe
}

func generateTagCondition(group string) ruleset.TagCondition {
	choices := tagGroups[group]
	switch rand.Intn(4) {
	case 0:
		return ruleset.TagIs{Tag: ruleset.TagID(choices[rand.Intn(len(choices))])}
	case 1:
		return ruleset.TagIsNot{Tag: ruleset.TagID(choices[rand.Intn(len(choices))])}
	case 2:
		return ruleset.TagOneOf{Tags: []ruleset.TagID{
			ruleset.TagID(choices[0]), ruleset.TagID(choices[1]),
		}}
	default:
		return ruleset.TagNoneOf{Tags: []ruleset.TagID{
			ruleset.TagID(choices[rand.Intn(len(choices))]),
		}}
	}
}

func generateCondition(universe *matcher.HostUniverse) ruleset.Condition {
	condition := ruleset.Condition{}

	for group := range tagGroups {
		if rand.Float32() < 0.3 {
			if condition.HostTags == nil {
				condition.HostTags = ruleset.TagConditions{}
			}
			condition.HostTags[ruleset.TaggroupID(group)] = generateTagCondition(group)
		}
	}

	if rand.Float32() < 0.3 {
		condition.HostFolder = folders[rand.Intn(len(folders))]
	}

	if rand.Float32() < 0.2 && len(universe.AllConfiguredHosts) > 0 {
		entries := make([]ruleset.ConditionEntry, 0, 3)
		for i := 0; i < rand.Intn(3)+1; i++ {
			host := universe.AllConfiguredHosts[rand.Intn(len(universe.AllConfiguredHosts))]
			entries = append(entries, ruleset.ConditionEntry{Literal: string(host)})
		}
		condition.HostName = &ruleset.HostOrServiceConditions{
			Negate:  rand.Float32() < 0.2,
			Entries: entries,
		}
	}

	if rand.Float32() < 0.4 {
		condition.ServiceDescription = &ruleset.HostOrServiceConditions{
			Entries: []ruleset.ConditionEntry{{
				Regex:   "^" + serviceNames[rand.Intn(len(serviceNames))],
				IsRegex: true,
			}},
		}
	}

	return condition
}

func generateValue() interface{} {
	switch rand.Intn(3) {
	case 0:
		return map[string]interface{}{
			"warn": gofakeit.Float64Range(50, 90),
			"crit": gofakeit.Float64Range(90, 100),
		}
	case 1:
		return gofakeit.Bool()
	default:
		return gofakeit.Word()
	}
}

func generateRuleset(id string, numRules int, universe *matcher.HostUniverse) *ruleset.Ruleset {
	rules := make([]ruleset.Rule, 0, numRules)
	for i := 0; i < numRules; i++ {
		rules = append(rules, ruleset.Rule{
			ID:        fmt.Sprintf("rule-%d", i+1),
			Value:     generateValue(),
			Condition: generateCondition(universe),
		})
	}
	return ruleset.NewRuleset(id, rules)
}

func writeJSONFile(value interface{}, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func main() {
	numHosts, numRules, universeFile, rulesetFile := parseFlags(os.Args[1:])

	gofakeit.Seed(time.Now().UnixNano())

	universe := generateUniverse(numHosts)
	if err := writeJSONFile(universe, universeFile); err != nil {
		fmt.Printf("Error writing universe: %v\n", err)
		os.Exit(1)
	}

	rs := generateRuleset("generated:v1", numRules, &universe)
	if err := writeJSONFile(rs, rulesetFile); err != nil {
		fmt.Printf("Error writing ruleset: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %d hosts (%s) and %d rules (%s)\n",
		numHosts, universeFile, numRules, rulesetFile)
}
