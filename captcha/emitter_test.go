package captcha

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defenra/bidi/config"
	"github.com/defenra/bidi/dialect"
)

func TestEmitPlain(t *testing.T) {
	cfg := config.DefaultChallenge()
	cfg.SpeedBumpEnabled = true
	code := Emit(cfg)

	assert.Contains(t, code, "BiDiCaptcha")
	assert.Contains(t, code, "validate: function(onFail)")
	assert.Contains(t, code, "_root.innerHTML")
	assert.Contains(t, code, "let _startTime = null;")
	assert.Contains(t, code, "_startTime = Date.now();")
	assert.Contains(t, code, "if(onFail) onFail('SPEED')")
	assert.Contains(t, code, "if(!isValid && onFail) onFail('MISMATCH')")
	assert.Contains(t, code, "< 1500)")
	assert.Contains(t, code, `id="bidi-captcha"`)
	assert.Contains(t, code, "const CHARS = '"+Charset+"';")
	assert.Contains(t, code, "const LENGTH = 6;")
	assert.NotContains(t, code, "attachShadow")

	speed := strings.Index(code, "onFail('SPEED')")
	mismatch := strings.Index(code, "onFail('MISMATCH')")
	assert.Less(t, speed, mismatch)

	// regeneration resets to the null sentinel before regenerating
	assert.Contains(t, code, "_startTime = null; regenerateChallenge();")
}

func TestEmitComponent(t *testing.T) {
	cfg := config.DefaultChallenge()
	cfg.SpeedBumpEnabled = true
	cfg.OutputDialect = dialect.Component
	code := Emit(cfg)

	assert.Contains(t, code, "import React")
	assert.Contains(t, code, "useRef")
	assert.Contains(t, code, "export default function BiDiCaptcha({ onValidate, onFail })")
	assert.Contains(t, code, "const startTimeRef = useRef(null);")
	assert.Contains(t, code, "startTimeRef.current = Date.now();")
	assert.Contains(t, code, "alert('Too Fast!'); return; }")
	assert.Contains(t, code, "if (!isValid && onFail) onFail('MISMATCH');")
	assert.Contains(t, code, "startTimeRef.current = null; regenerateChallenge();")
}

func TestEmitShadow(t *testing.T) {
	cfg := config.DefaultChallenge()
	cfg.Shadow = true

	plain := Emit(cfg)
	assert.Contains(t, plain, "attachShadow({mode: 'closed'})")
	assert.Contains(t, plain, "_root.innerHTML")

	cfg.OutputDialect = dialect.Component
	component := Emit(cfg)
	assert.Contains(t, component, "attachShadow({mode: 'closed'})")
	assert.Contains(t, component, "shadow.innerHTML")
	assert.Contains(t, component, "<div ref={hostRef} />")
}

func TestEmitWithoutSpeedBump(t *testing.T) {
	cfg := config.DefaultChallenge()
	for _, d := range []dialect.Dialect{dialect.Plain, dialect.Component} {
		cfg.OutputDialect = d
		code := Emit(cfg)
		assert.NotContains(t, code, "startTime", d.String())
		assert.NotContains(t, code, "'SPEED'", d.String())
		assert.Equal(t, []Reason{ReasonMismatch}, Guards(code), d.String())
	}
}

func TestEmitComponentImports(t *testing.T) {
	cases := []struct {
		name      string
		speedBump bool
		shadow    bool
		want      string
	}{
		{name: "plain widget", want: "import React, { useState } from 'react';"},
		{name: "speed bump", speedBump: true, want: "import React, { useEffect, useRef, useState } from 'react';"},
		{name: "shadow", shadow: true, want: "import React, { useEffect, useRef, useState } from 'react';"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.DefaultChallenge()
			cfg.OutputDialect = dialect.Component
			cfg.SpeedBumpEnabled = tc.speedBump
			cfg.Shadow = tc.shadow

			code := Emit(cfg)
			assert.True(t, strings.HasPrefix(code, tc.want+"\n"), code)
			if !tc.speedBump && !tc.shadow {
				assert.NotContains(t, code, "useRef")
				assert.NotContains(t, code, "useEffect")
			}
		})
	}
}

func TestEmitDialectParity(t *testing.T) {
	for _, speedBump := range []bool{false, true} {
		for _, shadow := range []bool{false, true} {
			cfg := config.DefaultChallenge()
			cfg.SpeedBumpEnabled = speedBump
			cfg.Shadow = shadow

			cfg.OutputDialect = dialect.Plain
			plain := Guards(Emit(cfg))
			cfg.OutputDialect = dialect.Component
			component := Guards(Emit(cfg))

			require.NotEmpty(t, plain)
			assert.Equal(t, plain, component, "speedBump=%v shadow=%v", speedBump, shadow)
			if speedBump {
				assert.Equal(t, []Reason{ReasonSpeed, ReasonMismatch}, plain)
			}
		}
	}
}

func TestEmitCaseSensitivity(t *testing.T) {
	cfg := config.DefaultChallenge()
	assert.Contains(t, Emit(cfg), ".toUpperCase()")

	cfg.CaseSensitive = true
	assert.NotContains(t, Emit(cfg), ".toUpperCase()")
}

func TestEmitNormalizesConfig(t *testing.T) {
	cfg := config.DefaultChallenge()
	cfg.SpeedBumpEnabled = true
	cfg.SpeedBumpThresholdMs = 200
	cfg.CodeLength = 50
	cfg.ElementID = "1 bad id"

	code := Emit(cfg)
	assert.Contains(t, code, "< 1500)")
	assert.Contains(t, code, "const LENGTH = 12;")
	assert.Contains(t, code, `id="bidi-captcha"`)
}

func TestGuards(t *testing.T) {
	assert.Nil(t, Guards("no callbacks here"))
	assert.Equal(t, []Reason{"MISMATCH", "SPEED"}, Guards("onFail('MISMATCH'); x; onFail('SPEED')"))
}
