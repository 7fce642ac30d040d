package observability

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var metricName = regexp.MustCompile(`odyssey_[a-z_]+`)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertFile struct {
	Groups []alertGroup `yaml:"groups"`
}

func loadAlerts(t *testing.T) alertFile {
	t.Helper()
	path := filepath.Join("..", "..", "deploy", "prometheus", "alerts", "desk.yml")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var file alertFile
	require.NoError(t, yaml.Unmarshal(data, &file))
	return file
}

func TestDeskAlertRules(t *testing.T) {
	file := loadAlerts(t)

	if len(file.Groups) == 0 {
		t.Fatal("expected at least one alert group")
	}

	var deskGroup *alertGroup
	for i := range file.Groups {
		if file.Groups[i].Name == "desk" {
			deskGroup = &file.Groups[i]
			break
		}
	}
	if deskGroup == nil {
		t.Fatal("desk alert group missing")
	}

	expected := map[string]struct {
		severity string
		runbook  string
	}{
		"BackendErrorRate":  {severity: "critical", runbook: "deploy/README.md#backend-error-rate"},
		"ListLatency":       {severity: "warning", runbook: "deploy/README.md#list-latency"},
		"RollbackSpike":     {severity: "warning", runbook: "deploy/README.md#rollback-spike"},
		"WarmupJobFailures": {severity: "warning", runbook: "deploy/README.md#warmup-job-failures"},
	}

	if len(deskGroup.Rules) != len(expected) {
		t.Fatalf("expected %d rules, got %d", len(expected), len(deskGroup.Rules))
	}

	for _, rule := range deskGroup.Rules {
		want, ok := expected[rule.Alert]
		if !ok {
			t.Fatalf("unexpected rule %q", rule.Alert)
		}
		if rule.Labels["severity"] != want.severity {
			t.Fatalf("rule %s severity mismatch: %s", rule.Alert, rule.Labels["severity"])
		}
		if rule.Annotations["runbook"] != want.runbook {
			t.Fatalf("rule %s runbook mismatch: %s", rule.Alert, rule.Annotations["runbook"])
		}
		if rule.Annotations["summary"] == "" || rule.Annotations["description"] == "" {
			t.Fatalf("rule %s must include summary and description annotations", rule.Alert)
		}
		if rule.Expr == "" {
			t.Fatalf("rule %s must define an expression", rule.Alert)
		}
		if rule.For == "" {
			t.Fatalf("rule %s must define a hold duration", rule.Alert)
		}
	}
}

func TestAlertExpressionsUseRegisteredMetrics(t *testing.T) {
	metrics := NewMetrics()
	metrics.SearchSuperseded("products")
	metrics.Rollback("movements")
	metrics.CacheLookup(true)
	metrics.Jobs().Track("views_warmup").End(errors.New("backend down"))
	metrics.requestsTotal.WithLabelValues("/views/{entity}", "200").Inc()
	metrics.requestDuration.WithLabelValues("/views/{entity}").Observe(0.1)

	families, err := metrics.registry.Gather()
	require.NoError(t, err)
	known := make(map[string]bool, len(families))
	for _, family := range families {
		known[family.GetName()] = true
	}

	for _, group := range loadAlerts(t).Groups {
		for _, rule := range group.Rules {
			names := metricName.FindAllString(rule.Expr, -1)
			require.NotEmpty(t, names, rule.Alert)
			for _, name := range names {
				base := strings.TrimSuffix(strings.TrimSuffix(strings.TrimSuffix(name, "_bucket"), "_sum"), "_count")
				require.True(t, known[base], "%s references unknown metric %s", rule.Alert, name)
			}
		}
	}
}
