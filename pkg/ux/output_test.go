// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIcon_Render(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconArrow, IconBullet} {
		assert.Contains(t, icon.Render(), string(icon))
	}
}

func TestIsTerminal_Buffer(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}

func TestNewPrinter_BufferIsPlain(t *testing.T) {
	assert.True(t, NewPrinter(&bytes.Buffer{}).Plain())
}

func TestPrinter_PlainOutput(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlainPrinter(&buf)

	p.Title("Suite")
	p.Success("done")
	p.Warning("careful")
	p.Error("failed")
	p.Field("Priority", "high")
	p.Line("raw")
	p.Box("Case", "line one\n\nline two")
	p.WarningBox("Degraded", "no json")

	assert.Equal(t, "Suite\n"+
		"OK: done\n"+
		"WARN: careful\n"+
		"ERROR: failed\n"+
		"Priority: high\n"+
		"raw\n"+
		"Case\n  line one\n\n  line two\n"+
		"WARN Degraded\n  no json\n", buf.String())
}

func TestPrinter_StyledOutputKeepsText(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{w: &buf}

	p.Success("done")
	p.Box("Case", "body")

	out := buf.String()
	assert.Contains(t, out, "done")
	assert.Contains(t, out, "Case")
	assert.Contains(t, out, "body")
}
