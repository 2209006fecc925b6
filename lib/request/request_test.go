// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"reflect"
	"strings"
	"testing"
)

func TestRequest_WithDoesNotMutateReceiver(t *testing.T) {
	original := Request{
		"action":   "broken",
		"packages": []any{"linux-64/a-1.0-0.conda", "linux-64/b-1.0-0.conda"},
	}

	residual := original.With("packages", []string{"linux-64/b-1.0-0.conda"})

	packages, err := original.Strings("packages")
	if err != nil {
		t.Fatalf("Strings: %v", err)
	}
	if len(packages) != 2 {
		t.Errorf("original packages = %v, want 2 entries", packages)
	}

	residualPackages, err := residual.Strings("packages")
	if err != nil {
		t.Fatalf("Strings on residual: %v", err)
	}
	if !reflect.DeepEqual(residualPackages, []string{"linux-64/b-1.0-0.conda"}) {
		t.Errorf("residual packages = %v", residualPackages)
	}
	if residual.Action() != "broken" {
		t.Errorf("residual action = %q, want broken", residual.Action())
	}
	if _, ok := residual["packages"].([]any); !ok {
		t.Errorf("residual packages stored as %T, want []any", residual["packages"])
	}
}

func TestRequest_CloneIsDeep(t *testing.T) {
	original := Request{
		"action":     "archive_branch",
		"feedstocks": map[string]any{"numpy": []any{"v1.x"}},
	}
	clone := original.Clone()
	clone["feedstocks"].(map[string]any)["numpy"] = []any{"changed"}

	branches := original["feedstocks"].(map[string]any)["numpy"].([]any)
	if branches[0] != "v1.x" {
		t.Errorf("original mutated through clone: %v", branches)
	}
}

func TestRequest_Accessors(t *testing.T) {
	req := Request{
		"action":    "token_reset",
		"list":      []any{"a", "b"},
		"mixed":     []any{"a", 1},
		"empty":     []any{},
		"flag":      true,
		"count":     3,
		"jsonCount": float64(7),
		"fraction":  1.5,
		"mapping":   map[string]any{"x": []any{"y"}},
		"items":     []any{map[string]any{"package": "p"}},
	}

	if got, err := req.Strings("list"); err != nil || !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Strings(list) = %v, %v", got, err)
	}
	if _, err := req.Strings("mixed"); err == nil || !strings.Contains(err.Error(), `"mixed"[1]`) {
		t.Errorf("Strings(mixed) error = %v, want index in message", err)
	}
	if _, err := req.Strings("empty"); err == nil {
		t.Error("Strings(empty) should fail")
	}
	if _, err := req.Strings("absent"); err == nil || !strings.Contains(err.Error(), "missing required field") {
		t.Errorf("Strings(absent) error = %v", err)
	}
	if got, err := req.OptionalStrings("absent"); err != nil || got != nil {
		t.Errorf("OptionalStrings(absent) = %v, %v", got, err)
	}
	if got, err := req.Bool("flag", false); err != nil || !got {
		t.Errorf("Bool(flag) = %v, %v", got, err)
	}
	if got, err := req.Bool("absent", true); err != nil || !got {
		t.Errorf("Bool(absent) = %v, %v", got, err)
	}
	if _, err := req.Bool("list", false); err == nil {
		t.Error("Bool(list) should fail")
	}
	if got, ok, err := req.Int("count"); err != nil || !ok || got != 3 {
		t.Errorf("Int(count) = %d, %v, %v", got, ok, err)
	}
	if got, ok, err := req.Int("jsonCount"); err != nil || !ok || got != 7 {
		t.Errorf("Int(jsonCount) = %d, %v, %v", got, ok, err)
	}
	if _, _, err := req.Int("fraction"); err == nil {
		t.Error("Int(fraction) should fail")
	}
	if _, ok, err := req.Int("absent"); err != nil || ok {
		t.Errorf("Int(absent) ok = %v, err = %v", ok, err)
	}
	if got, err := req.Mapping("mapping"); err != nil || len(got) != 1 {
		t.Errorf("Mapping(mapping) = %v, %v", got, err)
	}
	if _, err := req.Mapping("list"); err == nil {
		t.Error("Mapping(list) should fail")
	}
	if got, err := req.Mappings("items"); err != nil || got[0]["package"] != "p" {
		t.Errorf("Mappings(items) = %v, %v", got, err)
	}
	if _, err := req.Mappings("list"); err == nil {
		t.Error("Mappings(list) should fail")
	}
	if got, err := req.OptionalString("absent", "main"); err != nil || got != "main" {
		t.Errorf("OptionalString(absent) = %q, %v", got, err)
	}
}

func TestRequest_IsEmpty(t *testing.T) {
	var nilRequest Request
	if !nilRequest.IsEmpty() {
		t.Error("nil request should be empty")
	}
	if !(Request{}).IsEmpty() {
		t.Error("empty request should be empty")
	}
	if (Request{"action": "archive"}).IsEmpty() {
		t.Error("request with action should not be empty")
	}
}
