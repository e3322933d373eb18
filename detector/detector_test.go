package detector

import (
	"testing"

	"github.com/openfluke/webgpu/wgpu"
)

func limitsFor(maxX, maxInvocations, perDimension uint32) wgpu.SupportedLimits {
	var l wgpu.SupportedLimits
	l.Limits.MaxComputeWorkgroupSizeX = maxX
	l.Limits.MaxComputeInvocationsPerWorkgroup = maxInvocations
	l.Limits.MaxComputeWorkgroupsPerDimension = perDimension
	return l
}

func TestChooseWorkgroup(t *testing.T) {
	cases := []struct {
		name                 string
		maxX, maxInvocations uint32
		expected             uint32
	}{
		{"ample", 1024, 1024, 256},
		{"capped_by_size_x", 128, 1024, 128},
		{"capped_by_invocations", 1024, 64, 64},
		{"tiny_adapter", 3, 3, 1},
		{"degenerate", 0, 0, 1},
	}

	for _, c := range cases {
		x, y, z := chooseWorkgroup(limitsFor(c.maxX, c.maxInvocations, 65535))
		if x != c.expected || y != 1 || z != 1 {
			t.Errorf("%s: expected (%d, 1, 1), got (%d, %d, %d)", c.name, c.expected, x, y, z)
		}
	}
}

func TestChooseTile(t *testing.T) {
	l := limitsFor(1024, 1024, 65535)

	tx, ty := chooseTile(l, 64, 1)
	if tx != 512 || ty != 1 {
		t.Errorf("Expected tile (512, 1), got (%d, %d)", tx, ty)
	}

	// The per-dimension dispatch limit caps the tile
	small := limitsFor(1024, 1024, 1000)
	tx, ty = chooseTile(small, 256, 1)
	if tx != 1000 || ty != 1 {
		t.Errorf("Expected tile (1000, 1), got (%d, %d)", tx, ty)
	}

	tx, ty = chooseTile(l, 64, 4)
	if tx != 512 || ty != 32 {
		t.Errorf("Expected tile (512, 32), got (%d, %d)", tx, ty)
	}

	tx, ty = chooseTile(l, 0, 1)
	if tx != 1 {
		t.Errorf("Expected tile floor of 1, got %d", tx)
	}
}

func TestDetectRuntime(t *testing.T) {
	if got := detectRuntime(); got != "native" {
		t.Errorf("Expected native runtime under go test, got %q", got)
	}
}

func TestPickEnv(t *testing.T) {
	if got := pickEnv([]string{"GLYPHNET_TEST_UNSET_KEY"}); got != nil {
		t.Errorf("Expected nil map for unset keys, got %v", got)
	}

	t.Setenv("GLYPHNET_BUDGET_MB", "64")
	got := pickEnv([]string{"GLYPHNET_BUDGET_MB"})
	if got["GLYPHNET_BUDGET_MB"] != "64" {
		t.Errorf("Expected budget 64 in env map, got %v", got)
	}
}
