package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/gatekeeper/pkg/rbac"
)

// LoadPermissions は権限テーブルを構築する。PermissionsFileが設定されて
// いればYAMLから、そうでなければ組み込みの権限設定から読み込む。
// 所有権チェック対象の族が権限ルールに覆われていることもここで検証する。
func LoadPermissions(c *Config) (*rbac.Table, error) {
	perms := rbac.DefaultPermissions()
	if c.PermissionsFile != "" {
		data, err := os.ReadFile(c.PermissionsFile)
		if err != nil {
			return nil, fmt.Errorf("権限設定の読み込みに失敗: %w", err)
		}
		var loaded map[rbac.Role][]rbac.Permission
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return nil, fmt.Errorf("権限設定の解析に失敗: %w", err)
		}
		if len(loaded) == 0 {
			return nil, fmt.Errorf("権限設定が空です: %s", c.PermissionsFile)
		}
		perms = loaded
	}

	table, err := rbac.NewTable(perms)
	if err != nil {
		return nil, err
	}
	if err := rbac.ValidateOwnership(table); err != nil {
		return nil, err
	}
	return table, nil
}
