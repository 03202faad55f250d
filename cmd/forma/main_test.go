package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cutBoxes = `(def outer (box :from [0 0 0] :to [100 100 100] :name "outer"))
(def inner (box :from [10 10 10] :to [90 90 150] :name "inner"))
(cut outer inner :name "shell")
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	// A config path that never exists keeps tests on the defaults.
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yml")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuildThenCheck(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "part.forma", cutBoxes)

	out, err := execute(t, "build", src)
	require.NoError(t, err)
	assert.Contains(t, out, "3 elements, json")

	doc := filepath.Join(dir, "part.json")
	require.FileExists(t, doc)

	out, err = execute(t, "check", doc)
	require.NoError(t, err)
	assert.Contains(t, out, "ok (3 elements)")
}

func TestBuildWithCodecAndOutput(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "part.forma", cutBoxes)
	target := filepath.Join(dir, "out", "doc.bin")

	_, err := execute(t, "build", src, "--codec", "msgpack", "-o", target)
	require.NoError(t, err)
	require.FileExists(t, target)

	_, err = execute(t, "build", src, "--codec", "xml")
	require.Error(t, err)
}

func TestCompile(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "part.forma", cutBoxes)

	out, err := execute(t, "compile", src)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"var outer = csg.makeBox([0,0,0],[100,100,100]);",
		"var inner = csg.makeBox([10,10,10],[90,90,150]);",
		"var shell = csg.cut(outer,inner);",
	}, "\n")+"\n", out)

	out, err = execute(t, "compile", src, "--bare")
	require.NoError(t, err)
	assert.Contains(t, out, "var shell = cut(outer,inner);")

	out, err = execute(t, "compile", src, "--namespace", "kernel")
	require.NoError(t, err)
	assert.Contains(t, out, "kernel.cut(outer,inner)")
}

func TestConvertPreservesScript(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "part.forma", cutBoxes)
	want, err := execute(t, "compile", src)
	require.NoError(t, err)

	yml := filepath.Join(dir, "part.yml")
	_, err = execute(t, "convert", src, yml)
	require.NoError(t, err)

	mp := filepath.Join(dir, "part.msgpack")
	_, err = execute(t, "convert", yml, mp)
	require.NoError(t, err)

	got, err := execute(t, "compile", mp)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = execute(t, "convert", src, filepath.Join(dir, "part.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot infer codec")

	// --to wins over the extension.
	txt := filepath.Join(dir, "part.txt")
	_, err = execute(t, "convert", src, txt, "--to", "yaml")
	require.NoError(t, err)
	got, err = execute(t, "compile", writeSource(t, dir, "copy.yaml", readFile(t, txt)))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestConvertDefaultOutput(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "part.forma", cutBoxes)

	out, err := execute(t, "convert", src, "--to", "msgpack")
	require.NoError(t, err)
	assert.Contains(t, out, "part.msgpack")
	require.FileExists(t, filepath.Join(dir, "part.msgpack"))

	_, err = execute(t, "convert", src)
	require.Error(t, err)

	_, err = execute(t, "convert", filepath.Join(dir, "part.msgpack"), "--to", "msgpack")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already msgpack")
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestCheckReportsProblems(t *testing.T) {
	dir := t.TempDir()
	single := writeSource(t, dir, "single.forma", "(box :from [0 0 0] :to [1 1 1])\n")
	broken := writeSource(t, dir, "broken.json", `{"format": 1`)
	bad := writeSource(t, dir, "bad.forma", "(cut)")

	out, err := execute(t, "check", single)
	require.NoError(t, err)
	assert.Contains(t, out, "ok (1 elements)")

	out, err = execute(t, "check", single, broken, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 3 inputs failed")
	assert.Contains(t, out, "broken.json")
	assert.Contains(t, out, "bad.forma")
}

func TestMesh(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "part.forma", cutBoxes)

	out, err := execute(t, "mesh", src, "--cells", "30")
	require.NoError(t, err)
	assert.Contains(t, out, "shell")
	assert.Contains(t, out, "1 meshes")
}

func TestWatchRejectsDocuments(t *testing.T) {
	dir := t.TempDir()
	doc := writeSource(t, dir, "part.json", "{}")

	_, err := execute(t, "watch", doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only accepts .forma sources")
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := execute(t, "--log-level", "loud", "compile", "x.forma")
	require.Error(t, err)
}

func TestCodecFor(t *testing.T) {
	tests := map[string]string{
		"a.json":    "json",
		"a.YAML":    "yaml",
		"a.yml":     "yaml",
		"a.msgpack": "msgpack",
		"a.mp":      "msgpack",
	}
	for path, want := range tests {
		c, err := codecFor(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, c.Name(), path)
	}
}
