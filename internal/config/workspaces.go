// workspaces.go — workspaces.yaml 工作区清单解析。
package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/codex-monitor/go-monitor/pkg/errors"
)

// WorkspaceEntry 单个本地工作区根目录。
type WorkspaceEntry struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// WorkspacesFile workspaces.yaml 顶层结构。
type workspacesFile struct {
	Workspaces []WorkspaceEntry `yaml:"workspaces"`
}

// LoadWorkspaces 解析 workspaces.yaml。缺失文件不是错误, 返回空列表。
func LoadWorkspaces(path string) ([]WorkspaceEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.Wrap(err, "Config.LoadWorkspaces", "read workspaces file")
	}

	var parsed workspacesFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, apperrors.Wrap(err, "Config.LoadWorkspaces", "parse workspaces yaml")
	}

	entries := make([]WorkspaceEntry, 0, len(parsed.Workspaces))
	for _, ws := range parsed.Workspaces {
		id := strings.TrimSpace(ws.ID)
		root := strings.TrimSpace(ws.Path)
		if id == "" || root == "" {
			continue
		}
		if ws.Name == "" {
			ws.Name = id
		}
		ws.ID = id
		ws.Path = root
		entries = append(entries, ws)
	}
	return entries, nil
}
