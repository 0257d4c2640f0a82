package plugin

import (
	"fmt"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/errors"
)

// ResolveOrder filters configs to the enabled set and sorts them so every
// "after" dependency precedes its dependent and every "before" dependency
// follows it. The sort is stable: plugins with no constraint between them
// keep their configured order.
//
// setLabel names the plugin set ("note plugins", "build plugins") in cycle
// errors. Dependencies on disabled or unknown plugins and cycles are fatal
// configuration errors, raised here, before any plugin runs.
func ResolveOrder(setLabel string, configs []config.PluginConfig) ([]config.PluginConfig, error) {
	enabled := make([]config.PluginConfig, 0, len(configs))
	position := make(map[string]int)
	for _, pc := range configs {
		if !pc.IsEnabled() {
			continue
		}
		position[pc.Name] = len(enabled)
		enabled = append(enabled, pc)
	}

	if err := validateDependencies(enabled, position); err != nil {
		return nil, err
	}

	// Edge dep->plugin for "after", plugin->dep for "before". indegree counts
	// unsatisfied predecessors.
	indegree := make([]int, len(enabled))
	successors := make([][]int, len(enabled))
	for i, pc := range enabled {
		for _, dep := range pc.After {
			j := position[dep]
			successors[j] = append(successors[j], i)
			indegree[i]++
		}
		for _, dep := range pc.Before {
			j := position[dep]
			successors[i] = append(successors[i], j)
			indegree[j]++
		}
	}

	// Kahn with the ready set scanned in input order: deterministic, and
	// unconstrained plugins come out in configured order.
	ordered := make([]config.PluginConfig, 0, len(enabled))
	emitted := make([]bool, len(enabled))
	for len(ordered) < len(enabled) {
		next := -1
		for i := range enabled {
			if !emitted[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next == -1 {
			return nil, errors.ConfigErrorf("circular dependency detected in %s: %v", setLabel, remainingNames(enabled, emitted))
		}
		emitted[next] = true
		ordered = append(ordered, enabled[next])
		for _, succ := range successors[next] {
			indegree[succ]--
		}
	}

	return ordered, nil
}

func validateDependencies(enabled []config.PluginConfig, position map[string]int) error {
	for _, pc := range enabled {
		for _, dep := range pc.After {
			if _, ok := position[dep]; !ok {
				return errors.ConfigError(fmt.Sprintf(
					"plugin %q has after dependency on %q which is not enabled or doesn't exist", pc.Name, dep))
			}
		}
		for _, dep := range pc.Before {
			if _, ok := position[dep]; !ok {
				return errors.ConfigError(fmt.Sprintf(
					"plugin %q has before dependency on %q which is not enabled or doesn't exist", pc.Name, dep))
			}
		}
	}
	return nil
}

func remainingNames(enabled []config.PluginConfig, emitted []bool) []string {
	var names []string
	for i, pc := range enabled {
		if !emitted[i] {
			names = append(names, pc.Name)
		}
	}
	return names
}
