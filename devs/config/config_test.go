package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/quaylabs/devsim/devs"
	"github.com/quaylabs/devsim/devs/registry"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadModelDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "player.json"), `{
		"model_class": "player",
		"input_ports": ["in"],
		"output_ports": ["out"],
		"dynamic_type": "stub",
		"submodels": {},
		"default_init": {"phase": "WAITING"}
	}`)
	writeFile(t, filepath.Join(dir, "root.json"), `{
		"model_class": "root",
		"submodels": {
			"a": {"model_class": "player", "init_variants": {"v1": 1, "v2": 2}},
			"b": {"model_class": "player"}
		},
		"internal_couplings": [
			{"src_model": "a", "src_port": "out", "dst_model": "b", "dst_port": "in"}
		],
		"root_init_variants": {"only": null}
	}`)

	classes, err := LoadModelDirectory(dir)
	if err != nil {
		t.Fatalf("LoadModelDirectory: %v", err)
	}
	if len(classes) != 2 {
		t.Fatalf("loaded %d classes, want 2", len(classes))
	}
	root, ok := classes["root"]
	if !ok {
		t.Fatal("root class not found")
	}
	if len(root.Submodels) != 2 {
		t.Fatalf("root has %d submodels, want 2", len(root.Submodels))
	}
	if len(root.InternalCouplings) != 1 {
		t.Fatalf("root has %d internal couplings, want 1", len(root.InternalCouplings))
	}
}

func TestVariantSetsWalksTree(t *testing.T) {
	classes := map[string]*ModelClass{
		"root": {
			Class:            "root",
			RootInitVariants: map[string]json.RawMessage{"only": json.RawMessage("null")},
			Submodels: map[string]Submodel{
				"a": {ModelClass: "player", InitVariants: map[string]json.RawMessage{"v1": json.RawMessage("1"), "v2": json.RawMessage("2")}},
				"b": {ModelClass: "player"},
			},
		},
		"player": {Class: "player"},
	}

	sets, err := VariantSets(classes, "root")
	if err != nil {
		t.Fatalf("VariantSets: %v", err)
	}
	if _, ok := sets["root"]; !ok {
		t.Error("expected a variant set for root")
	}
	if len(sets["root/a"]) != 2 {
		t.Errorf("root/a variant set = %v, want 2 entries", sets["root/a"])
	}
	if _, ok := sets["root/b"]; ok {
		t.Error("root/b declares no init_variants, should not appear")
	}
}

func TestVariantSetsDefaultsRootWithNoVariants(t *testing.T) {
	classes := map[string]*ModelClass{
		"root": {Class: "root"},
	}
	sets, err := VariantSets(classes, "root")
	if err != nil {
		t.Fatalf("VariantSets: %v", err)
	}
	// A model with zero declared variants still contributes a length-1
	// digit carrying its default, the root included.
	root, ok := sets["root"]
	if !ok {
		t.Fatal("expected a default variant set for root")
	}
	if len(root) != 1 {
		t.Fatalf("root variant set = %v, want exactly 1 entry", root)
	}
}

func TestModelFactoryBuildsAtomicAndCoupled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "player.json"), `{
		"model_class": "player",
		"input_ports": ["in"],
		"output_ports": ["out"],
		"dynamic_type": "stub",
		"default_init": {"phase": "WAITING"}
	}`)
	writeFile(t, filepath.Join(dir, "root.json"), `{
		"model_class": "root",
		"submodels": {
			"a": {"model_class": "player"},
			"b": {"model_class": "player"}
		},
		"internal_couplings": [
			{"src_model": "a", "src_port": "out", "dst_model": "b", "dst_port": "in"}
		],
		"root_init_variants": {"only": null}
	}`)

	reg := registry.New()
	reg.RegisterBehavior("stub", func() devs.Behavior { return &stubBehavior{} })

	factory, err := NewModelFactory(dir, reg, nil)
	if err != nil {
		t.Fatalf("NewModelFactory: %v", err)
	}

	tree, err := factory.Build("root", t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if tree.FullName != "root" {
		t.Errorf("root full name = %q, want %q", tree.FullName, "root")
	}
}

type stubBehavior struct{ devs.NopBehavior }
