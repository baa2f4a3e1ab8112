package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/popgrid/internal/config"
	"github.com/sells-group/popgrid/internal/model"
	"github.com/sells-group/popgrid/internal/pipeline"
	"github.com/sells-group/popgrid/internal/table"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"grid", "features", "schema", "targets", "runs"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "popgrid", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestFeaturesCommand_Flags(t *testing.T) {
	flag := featuresCmd.Flags().Lookup("mode")
	require.NotNil(t, flag)
	assert.Equal(t, "application", flag.DefValue)

	for _, name := range []string{"department", "resolution", "format", "output", "expected", "extended", "workers"} {
		assert.NotNil(t, featuresCmd.Flags().Lookup(name), "features should have --%s flag", name)
	}
}

func TestSchemaCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range schemaCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["check"])
	assert.True(t, names["diff"])
}

// resetFlags restores every flag of cmd to its default after the test.
func resetFlags(t *testing.T, cmd *cobra.Command) {
	t.Cleanup(func() {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	})
}

func TestApplyFeaturesFlags(t *testing.T) {
	resetFlags(t, featuresCmd)
	require.NoError(t, featuresCmd.ParseFlags([]string{
		"--mode", "model",
		"--department", "2A",
		"--resolution", "500",
		"--format", "parquet",
		"--output", "out.parquet",
		"--extended",
	}))

	c := &config.Config{}
	c.Grid.Resolution = 200
	mode, err := applyFeaturesFlags(featuresCmd, c)
	require.NoError(t, err)

	assert.Equal(t, model.ModeModel, mode)
	assert.Equal(t, "2A", c.Territory.Department)
	assert.Equal(t, 500, c.Grid.Resolution)
	assert.Equal(t, "parquet", c.Output.Format)
	assert.Equal(t, "out.parquet", c.Output.Path)
	assert.True(t, c.Features.Extended)
}

func TestApplyFeaturesFlags_UnknownMode(t *testing.T) {
	resetFlags(t, featuresCmd)
	require.NoError(t, featuresCmd.ParseFlags([]string{"--mode", "forecast"}))

	_, err := applyFeaturesFlags(featuresCmd, &config.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func testConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	boundary := `{"type":"FeatureCollection","features":[
	 {"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[400,0],[400,300],[0,300],[0,0]]]},"properties":{"code":"67"}}
	]}`
	path := filepath.Join(dir, "departements.geojson")
	require.NoError(t, os.WriteFile(path, []byte(boundary), 0o644))

	c := &config.Config{}
	c.Territory = config.TerritoryConfig{Department: "67", SRID: 2154, Boundary: path, CodeField: "code"}
	c.Grid = config.GridConfig{Resolution: 200, TrainingResolution: 200}
	c.Output.NoData = "NA"
	return c, dir
}

func TestWriteGrid(t *testing.T) {
	c, _ := testConfig(t)

	var buf bytes.Buffer
	g, err := writeGrid(&buf, c)
	require.NoError(t, err)
	assert.Equal(t, 4, g.Len())
	assert.Contains(t, buf.String(), `"idINSPIRE":"CRS2154RES200mN0E0"`)
	assert.Contains(t, buf.String(), "FeatureCollection")
}

func TestWriteGrid_UnknownDepartment(t *testing.T) {
	c, _ := testConfig(t)
	c.Territory.Department = "974"

	_, err := writeGrid(&bytes.Buffer{}, c)
	assert.Error(t, err)
}

func TestCheckTable(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "schema.yaml")
	require.NoError(t, table.WriteSchema(schemaPath, table.NewSchema([]string{"a", "b"}, "NA")))

	good := filepath.Join(dir, "good.csv")
	require.NoError(t, os.WriteFile(good, []byte("idINSPIRE,a,b\nc1,1,NA\nc2,2.5,3\n"), 0o644))

	var out bytes.Buffer
	require.NoError(t, checkTable(&out, schemaPath, good, "NA"))
	assert.Contains(t, out.String(), "2 records, 2 columns, schema OK")

	swapped := filepath.Join(dir, "swapped.csv")
	require.NoError(t, os.WriteFile(swapped, []byte("idINSPIRE,b,a\nc1,1,2\n"), 0o644))

	out.Reset()
	err := checkTable(&out, schemaPath, swapped, "NA")
	require.Error(t, err)
	assert.Contains(t, out.String(), `column "b" at position 0, want 1`)
}

func TestDiffSchemas(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")
	require.NoError(t, table.WriteSchema(a, table.NewSchema([]string{"A", "B", "C"}, "NA")))
	require.NoError(t, table.WriteSchema(b, table.NewSchema([]string{"A", "C", "B"}, "NA")))

	var out bytes.Buffer
	require.NoError(t, diffSchemas(&out, a, a))
	assert.Contains(t, out.String(), "schemas match")

	out.Reset()
	require.Error(t, diffSchemas(&out, a, b))
	assert.Contains(t, out.String(), `column "B"`)
}

func TestWriteTargets(t *testing.T) {
	c, dir := testConfig(t)
	sectors := `{"type":"FeatureCollection","features":[
	 {"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[400,0],[400,200],[0,200],[0,0]]]},"properties":{"CODE_SEC":7}}
	]}`
	stacked := "hour,district,pop0\n10am,7,100\n11am,7,300\n3am,7,20\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nantes_secteurs.geojson"), []byte(sectors), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nantes_pop_choro_stacked.csv"), []byte(stacked), 0o644))
	c.Layers.Mobiliscope = dir

	var buf bytes.Buffer
	n, err := writeTargets(context.Background(), &buf, c)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "CRS2154RES200mN0E0,nantes_007,40000.00,200,20", lines[1])
}

func TestPrintSummary(t *testing.T) {
	res := &pipeline.Result{
		RunID: "run-001",
		Summary: &model.RunResult{
			Cells:     9,
			Variables: []string{"a", "b"},
			NoData:    map[string]int{"b": 8},
		},
	}

	var buf bytes.Buffer
	printSummary(&buf, res)
	out := buf.String()
	assert.Contains(t, out, "run-001")
	assert.Contains(t, out, "Cells:")
	assert.Contains(t, out, "NoData b:")
	assert.Contains(t, out, "8")
}
