// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package toolchain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/snipcheck/pkg/types"
)

func TestRegistryLookup(t *testing.T) {
	r, err := NewRegistry(nil)
	require.NoError(t, err)

	tests := []struct {
		tag  string
		want string
	}{
		{"python", "python"},
		{"py", "python"},
		{"Python3", "python"},
		{"cpp", "cpp"},
		{"c++", "cpp"},
		{"c", "c"},
		{"go", "go"},
		{"sqlite", "sql"},
		{"rust", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			tc := r.Lookup(tt.tag)
			if tt.want == "" {
				assert.Nil(t, tc)
				return
			}
			require.NotNil(t, tc)
			assert.Equal(t, tt.want, tc.Name)
		})
	}
}

func TestRegistryOverrides(t *testing.T) {
	r, err := NewRegistry(map[string]types.ToolchainConfig{
		"python": {
			Tags: []string{"python", "py"},
			File: "x.py",
			Run:  []string{"pypy3", "{src}"},
		},
		"rust": {
			Tags:  []string{"rust", "rs"},
			File:  "main.rs",
			Build: []string{"rustc", "-o", "{bin}", "{src}"},
			Run:   []string{"{bin}"},
		},
	})
	require.NoError(t, err)

	py := r.Lookup("py")
	require.NotNil(t, py)
	assert.Equal(t, []string{"pypy3", "{src}"}, py.Run)
	assert.Empty(t, py.Build)
	assert.Nil(t, r.Lookup("python3"), "override replaces the whole definition")

	rs := r.Lookup("rs")
	require.NotNil(t, rs)
	assert.Equal(t, "rust", rs.Name)

	var names []string
	for _, tc := range r.All() {
		names = append(names, tc.Name)
	}
	assert.Equal(t, []string{"c", "cpp", "go", "python", "rust", "sql"}, names)
}

func TestRegistryInvalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  types.ToolchainConfig
		msg  string
	}{
		{"no tags", types.ToolchainConfig{File: "a", Run: []string{"a"}}, "no tags"},
		{"no file", types.ToolchainConfig{Tags: []string{"a"}, Run: []string{"a"}}, "no file name"},
		{"no commands", types.ToolchainConfig{Tags: []string{"a"}, File: "a"}, "build or run"},
		{"bad entry", types.ToolchainConfig{Tags: []string{"a"}, File: "a", Run: []string{"a"}, Entry: "("}, "entry pattern"},
		{"bad engine", types.ToolchainConfig{Tags: []string{"a"}, File: "a", Engine: "duckdb"}, "unknown engine"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(map[string]types.ToolchainConfig{"x": tt.cfg})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestRunnable(t *testing.T) {
	r, err := NewRegistry(nil)
	require.NoError(t, err)

	cpp := r.Get("cpp")
	assert.True(t, cpp.Runnable("int main() { return 0; }"))
	assert.True(t, cpp.Runnable("int main(int argc, char** argv) {}"))
	assert.False(t, cpp.Runnable("std::string s = \"domain\";"))

	goTC := r.Get("go")
	assert.True(t, goTC.Runnable("package main\nfunc main() {}\n"))
	assert.False(t, goTC.Runnable("func helper() {}\n"))

	assert.True(t, r.Get("python").Runnable("print(1)"))
}

func TestBinaries(t *testing.T) {
	r, err := NewRegistry(nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"c++"}, r.Get("cpp").Binaries())
	assert.Equal(t, []string{"python3"}, r.Get("python").Binaries())
	assert.Equal(t, []string{"go", "gofmt"}, r.Get("go").Binaries())
	assert.Empty(t, r.Get("sql").Binaries())
	assert.True(t, r.Get("sql").InProcess())
}

func TestNeeds(t *testing.T) {
	r, err := NewRegistry(map[string]types.ToolchainConfig{
		"fmtless": {Tags: []string{"fmtless"}, File: "main.x", Build: []string{"xc", "{src}"}, Run: []string{"{bin}"}, Entry: `main`},
	})
	require.NoError(t, err)

	tests := []struct {
		name      string
		toolchain string
		source    string
		want      []string
	}{
		{name: "go program", toolchain: "go", source: "package main\nfunc main() {}\n", want: []string{"go"}},
		{name: "go fragment", toolchain: "go", source: "func helper() {}\n", want: []string{"gofmt"}},
		{name: "cpp program", toolchain: "cpp", source: "int main() {}\n", want: []string{"c++"}},
		{name: "cpp fragment", toolchain: "cpp", source: "int f();\n", want: []string{"c++"}},
		{name: "python", toolchain: "python", source: "print(1)\n", want: []string{"python3"}},
		{name: "fragment without check uses build", toolchain: "fmtless", source: "helper\n", want: []string{"xc"}},
		{name: "in-process", toolchain: "sql", source: "SELECT 1;\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Get(tt.toolchain).Needs(tt.source))
		})
	}
}

func TestExpand(t *testing.T) {
	got := Expand([]string{"c++", "-o{bin}", "{src}", "-I{dir}/inc"}, "/s/main.cpp", "/s/prog", "/s")
	assert.Equal(t, []string{"c++", "-o/s/prog", "/s/main.cpp", "-I/s/inc"}, got)
}
