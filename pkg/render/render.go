package render

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/cuemby/hutch/pkg/types"
)

// ConfigRenderError reports a template or filesystem failure while
// producing a rendered artifact. The pass that hits one aborts without
// touching the applied-state marker.
type ConfigRenderError struct {
	Path string
	Err  error
}

func (e *ConfigRenderError) Error() string {
	return fmt.Sprintf("failed to render %s: %v", e.Path, e.Err)
}

func (e *ConfigRenderError) Unwrap() error { return e.Err }

// AppINI renders a Gitea app.ini from flat key/value pairs. Keys of the
// form "section.KEY" land in [section]; keys without a dot land in the
// default section. Sections and keys are emitted in sorted order so the
// same values always produce byte-identical output.
func AppINI(values map[string]string) []byte {
	sections := map[string]map[string]string{}
	for k, v := range values {
		section, key := "", k
		if i := strings.Index(k, "."); i >= 0 {
			section, key = k[:i], k[i+1:]
		}
		if sections[section] == nil {
			sections[section] = map[string]string{}
		}
		sections[section][key] = v
	}

	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	for _, name := range names {
		if name != "" {
			fmt.Fprintf(&buf, "[%s]\n", name)
		}
		keys := make([]string, 0, len(sections[name]))
		for k := range sections[name] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&buf, "%s = %s\n", k, sections[name][k])
		}
		buf.WriteString("\n")
	}
	return buf.Bytes()
}

var runnerTemplate = template.Must(template.New("runner").Parse(`log:
  level: info

runner:
  file: {{.DataDir}}/.runner
  capacity: 1
  labels:
{{- range .Labels}}
    - {{.}}
{{- end}}
`))

// RunnerConfig renders the act_runner daemon configuration from the
// resolved runner values.
func RunnerConfig(values map[string]string) ([]byte, error) {
	labels := strings.Split(values["labels"], ",")
	for i := range labels {
		labels[i] = strings.TrimSpace(labels[i])
	}

	var buf bytes.Buffer
	err := runnerTemplate.Execute(&buf, struct {
		DataDir string
		Labels  []string
	}{
		DataDir: values["data_dir"],
		Labels:  labels,
	})
	if err != nil {
		return nil, &ConfigRenderError{Path: "config.yaml", Err: err}
	}
	return buf.Bytes(), nil
}

var unitTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description={{.Description}}
After=network.target

[Service]
Type=simple
ExecStart={{.ExecStart}}
{{- if .WorkingDir}}
WorkingDirectory={{.WorkingDir}}
{{- end}}
Restart=on-failure
RestartSec=2

[Install]
WantedBy=multi-user.target
`))

// UnitFile renders the systemd unit definition for a managed service
// running the given binary.
func UnitFile(svc types.ManagedService, binaryPath string) ([]byte, error) {
	parts := append([]string{binaryPath}, svc.Args...)

	var buf bytes.Buffer
	err := unitTemplate.Execute(&buf, struct {
		Description string
		ExecStart   string
		WorkingDir  string
	}{
		Description: svc.Description,
		ExecStart:   strings.Join(parts, " "),
		WorkingDir:  svc.WorkingDir,
	})
	if err != nil {
		return nil, &ConfigRenderError{Path: svc.UnitName(), Err: err}
	}
	return buf.Bytes(), nil
}

// WriteFile writes a rendered artifact atomically: the content lands in
// a temp file in the target directory, is flushed and closed, then
// renamed over the destination. The parent directory is created with a
// restrictive mode if missing.
func WriteFile(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return &ConfigRenderError{Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &ConfigRenderError{Path: path, Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &ConfigRenderError{Path: path, Err: err}
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return &ConfigRenderError{Path: path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &ConfigRenderError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &ConfigRenderError{Path: path, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &ConfigRenderError{Path: path, Err: err}
	}
	return nil
}
