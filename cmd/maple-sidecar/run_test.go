package main

import (
	"strings"
	"testing"
)

func TestRunSidecarRejectsPositionalArgs(t *testing.T) {
	err := runSidecar([]string{"bogus"})
	if err == nil {
		t.Fatal("expected error but got none")
	}
	if !strings.Contains(err.Error(), "bogus") {
		t.Errorf("error does not name the stray argument: %v", err)
	}

	err = runSidecar([]string{"-debug", "extra"})
	if err == nil || !strings.Contains(err.Error(), "extra") {
		t.Errorf("stray argument after flags accepted: %v", err)
	}
}
