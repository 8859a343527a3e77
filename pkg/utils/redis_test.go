package utils

import "testing"

func TestActiveCallScriptsCompile(t *testing.T) {
	// Compile-time smoke test: scripts should be initialized.
	if activeCallClaimScript == nil || activeCallReleaseScript == nil {
		t.Fatalf("expected scripts to be initialized")
	}
}
