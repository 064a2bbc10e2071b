package cmd

import (
	"testing"

	"cdist/hostgroups"
)

func TestAnyParallelDetectsOverride(t *testing.T) {
	targets := []hostgroups.Target{
		{Host: "a", Parallel: false},
		{Host: "b", Parallel: true},
	}
	if !anyParallel(targets) {
		t.Fatal("expected anyParallel to report true when any target requests it")
	}
}

func TestAnyParallelFalseWhenNoneRequest(t *testing.T) {
	targets := []hostgroups.Target{
		{Host: "a", Parallel: false},
		{Host: "b", Parallel: false},
	}
	if anyParallel(targets) {
		t.Fatal("expected anyParallel to report false")
	}
}
