package inventory

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/gramckode/parallel-ssh/internal/target"
)

const testInventoryYAML = `webservers:
  hosts:
    web01:
      ansible_host: 10.0.0.11
      env: production
    web02:
      env: staging
databases:
  hosts:
    db01:
      ansible_host: 10.0.0.21
      env: production
      backup: "true"
`

func writeInventory(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write inventory: %v", err)
	}
	return path
}

func byHost(targets []target.Target) map[string]target.Target {
	m := make(map[string]target.Target, len(targets))
	for _, tgt := range targets {
		m[tgt.Original] = tgt
	}
	return m
}

func TestAnsibleInventoryLoadTargets(t *testing.T) {
	path := writeInventory(t, "inventory.yml", testInventoryYAML)
	inv := NewAnsibleInventory(path)

	targets, err := inv.LoadTargets()
	if err != nil {
		t.Fatalf("LoadTargets failed: %v", err)
	}
	if len(targets) != 3 {
		t.Fatalf("expected 3 targets, got %d: %v", len(targets), targets)
	}

	m := byHost(targets)

	web01, ok := m["web01"]
	if !ok {
		t.Fatal("web01 missing from inventory")
	}
	if web01.Host != "10.0.0.11" {
		t.Errorf("ansible_host not applied: Host = %q", web01.Host)
	}
	if web01.Properties["env"] != "production" {
		t.Errorf("host var not converted: %v", web01.Properties)
	}
	if _, leaked := web01.Properties["ansible_host"]; leaked {
		t.Error("ansible_ builtin leaked into properties")
	}
	if len(web01.Tags) != 1 || web01.Tags[0] != "webservers" {
		t.Errorf("group tag not applied: %v", web01.Tags)
	}

	web02 := m["web02"]
	if web02.Host != "web02" {
		t.Errorf("host without ansible_host should keep its name, got %q", web02.Host)
	}
}

func TestAnsibleInventoryGetGroups(t *testing.T) {
	path := writeInventory(t, "inventory.yml", testInventoryYAML)
	inv := NewAnsibleInventory(path)

	groups, err := inv.GetGroups()
	if err != nil {
		t.Fatalf("GetGroups failed: %v", err)
	}
	sort.Strings(groups)

	want := []string{"databases", "webservers"}
	if len(groups) != 2 || groups[0] != want[0] || groups[1] != want[1] {
		t.Errorf("GetGroups() = %v, want %v", groups, want)
	}
}

func TestAnsibleInventoryGetTargetsByGroup(t *testing.T) {
	path := writeInventory(t, "inventory.yml", testInventoryYAML)
	inv := NewAnsibleInventory(path)

	targets, err := inv.GetTargetsByGroup("databases")
	if err != nil {
		t.Fatalf("GetTargetsByGroup failed: %v", err)
	}
	if len(targets) != 1 || targets[0].Original != "db01" {
		t.Errorf("databases group = %v, want only db01", targets)
	}
	if targets[0].Properties["backup"] != "true" {
		t.Errorf("group host vars not converted: %v", targets[0].Properties)
	}

	if _, err := inv.GetTargetsByGroup("nonexistent"); err == nil {
		t.Error("expected error for unknown group")
	}
}

func TestAnsibleInventoryJSON(t *testing.T) {
	content := `{"webservers": {"hosts": {"web01": {"env": "production"}}}}`
	path := writeInventory(t, "inventory.json", content)
	inv := NewAnsibleInventory(path)

	targets, err := inv.LoadTargets()
	if err != nil {
		t.Fatalf("LoadTargets failed: %v", err)
	}
	if len(targets) != 1 || targets[0].Host != "web01" {
		t.Errorf("JSON inventory = %v, want web01", targets)
	}
}

func TestAnsibleInventoryNestedChildren(t *testing.T) {
	content := `all:
  children:
    prod:
      children:
        web:
          hosts:
            web01: {}
`
	// Nested children reachable only through "all" are exposed via the
	// inline group map as well; target tags accumulate the group chain.
	path := writeInventory(t, "inventory.yml", content)
	inv := NewAnsibleInventory(path)

	targets, err := inv.LoadTargets()
	if err != nil {
		t.Fatalf("LoadTargets failed: %v", err)
	}
	if len(targets) == 0 {
		t.Fatal("nested inventory produced no targets")
	}
}

func TestAnsibleInventoryMissingFile(t *testing.T) {
	inv := NewAnsibleInventory("/nonexistent/inventory.yml")
	if _, err := inv.LoadTargets(); err == nil {
		t.Error("expected error for missing inventory file")
	}
}

func TestStaticInventory(t *testing.T) {
	inv := NewStaticInventory()
	inv.AddTarget(target.Target{Host: "h1", Tags: []string{"web"}})
	inv.AddTarget(target.Target{Host: "h2", Tags: []string{"web", "prod"}})

	targets, err := inv.LoadTargets()
	if err != nil || len(targets) != 2 {
		t.Fatalf("LoadTargets = %v, %v", targets, err)
	}

	web, err := inv.GetTargetsByGroup("web")
	if err != nil || len(web) != 2 {
		t.Errorf("group web = %v, %v", web, err)
	}

	prod, err := inv.GetTargetsByGroup("prod")
	if err != nil || len(prod) != 1 || prod[0].Host != "h2" {
		t.Errorf("group prod = %v, %v", prod, err)
	}

	if _, err := inv.GetTargetsByGroup("missing"); err == nil {
		t.Error("expected error for unknown group")
	}
}

func TestLoadInventoryFromFile(t *testing.T) {
	for _, name := range []string{"inv.yml", "inv.yaml", "inv.json"} {
		if _, err := LoadInventoryFromFile(name); err != nil {
			t.Errorf("LoadInventoryFromFile(%s) rejected supported format: %v", name, err)
		}
	}

	if _, err := LoadInventoryFromFile("inventory.ini"); err == nil {
		t.Error("expected error for unsupported extension")
	}
}
