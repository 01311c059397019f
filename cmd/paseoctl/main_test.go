package main

import "testing"

func TestRun_NoArgsReturnsUsageExitCode(t *testing.T) {
	if code := run(nil); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
}

func TestRun_UnknownCommandReturnsUsageExitCode(t *testing.T) {
	if code := run([]string{"frobnicate"}); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
}

func TestRun_StopWithoutAgentIDReturnsUsageExitCode(t *testing.T) {
	if code := run([]string{"stop"}); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
}

func TestRun_LogsWithoutAgentIDReturnsUsageExitCode(t *testing.T) {
	if code := run([]string{"logs"}); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
}

func TestRun_AgentWithoutSubcommandReturnsUsageExitCode(t *testing.T) {
	if code := run([]string{"agent"}); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
}

func TestRun_AgentUnknownSubcommandReturnsUsageExitCode(t *testing.T) {
	if code := run([]string{"agent", "frobnicate", "agent-1"}); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
}

func TestRun_HelpReturnsZero(t *testing.T) {
	if code := run([]string{"help"}); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
}

func TestRun_LsWithUnreachableDaemonReturnsOne(t *testing.T) {
	if code := run([]string{"ls", "-addr", "127.0.0.1:1"}); code != 1 {
		t.Fatalf("expected exit code 1 for an unreachable daemon, got %d", code)
	}
}
