package main

import (
	"testing"

	"github.com/dlattice/tessera/internal/kernel"
)

func TestSplitIntsParsesAndTrims(t *testing.T) {
	got, err := splitInts(" 0, 1,2 ,3")
	if err != nil {
		t.Fatalf("splitInts: %v", err)
	}
	want := []int{0, 1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("splitInts = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("splitInts[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestSplitIntsRejectsGarbage(t *testing.T) {
	if _, err := splitInts("1,x,3"); err == nil {
		t.Fatalf("expected an error for a non-numeric token")
	}
}

func TestSplitIntsSkipsEmptyTokens(t *testing.T) {
	got, err := splitInts("1,,2,")
	if err != nil {
		t.Fatalf("splitInts: %v", err)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("splitInts = %v, want [1 2]", got)
	}
}

func TestSplitTargetsParses(t *testing.T) {
	got, err := splitTargets("host, devices")
	if err != nil {
		t.Fatalf("splitTargets: %v", err)
	}
	want := []kernel.Target{kernel.HostTask, kernel.Devices}
	if len(got) != len(want) {
		t.Fatalf("splitTargets = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("splitTargets[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSplitTargetsRejectsUnknown(t *testing.T) {
	if _, err := splitTargets("host,gpu"); err == nil {
		t.Fatalf("expected an error for an unknown target")
	}
}
