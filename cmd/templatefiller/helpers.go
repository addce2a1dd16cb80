package main

import "slices"

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func sortedStrings(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)
	return out
}
