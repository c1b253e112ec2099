package rbac

import (
	"fmt"
	"regexp"
	"strings"
)

// Role は呼び出し元に割り当てられるロール。閉じた集合として扱う。
type Role string

const (
	// RoleAdmin は管理者ロール。所有権チェックの対象外。
	RoleAdmin Role = "admin"
	// RoleUser は一般ユーザーロール。
	RoleUser Role = "user"
)

// Permission はロールに許可されたリソースパターンとHTTPメソッドの組。
type Permission struct {
	// Resource はリソースパスのパターン。"**" は任意の文字列
	// （パス区切りを含む）にマッチするワイルドカード。
	Resource string `yaml:"resource"`
	// Methods は許可するHTTPメソッドのリスト。
	Methods []string `yaml:"methods"`
}

// compiledRule はパターンを事前コンパイルした内部表現。
// リクエスト毎の正規表現コンパイルを避ける。
type compiledRule struct {
	// pattern は元のリソースパターン。
	pattern string
	// re はコンパイル済みの正規表現。
	re *regexp.Regexp
	// methods は許可メソッドの集合。
	methods map[string]struct{}
}

// Table はロールから許可ルールへの不変なマッピング。
// 起動時に一度だけ構築し、以降は読み取り専用。
type Table struct {
	rules map[Role][]compiledRule
}

// CompilePattern はワイルドカードパターンを正規表現にコンパイルする。
// "**" は任意の文字列（"/" を含む）にマッチし、それ以外の文字は
// すべてリテラルとして扱う（単独の "*" もリテラル）。
// パターンは文字列全体にアンカーされる。
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	parts := strings.Split(pattern, "**")
	quoted := make([]string, 0, len(parts))
	for _, p := range parts {
		quoted = append(quoted, regexp.QuoteMeta(p))
	}
	re, err := regexp.Compile("^" + strings.Join(quoted, ".*") + "$")
	if err != nil {
		return nil, fmt.Errorf("パターンのコンパイルに失敗: %q: %w", pattern, err)
	}
	return re, nil
}

// NewTable は権限設定からTableを構築する。
// すべてのパターンをこの時点でコンパイルする。
func NewTable(permissions map[Role][]Permission) (*Table, error) {
	rules := make(map[Role][]compiledRule, len(permissions))
	for role, perms := range permissions {
		compiled := make([]compiledRule, 0, len(perms))
		for _, p := range perms {
			re, err := CompilePattern(p.Resource)
			if err != nil {
				return nil, fmt.Errorf("ロール %q の権限ルールが不正: %w", role, err)
			}
			methods := make(map[string]struct{}, len(p.Methods))
			for _, m := range p.Methods {
				methods[strings.ToUpper(m)] = struct{}{}
			}
			compiled = append(compiled, compiledRule{pattern: p.Resource, re: re, methods: methods})
		}
		rules[role] = compiled
	}
	return &Table{rules: rules}, nil
}

// Allows はロールがリソースパスに対してメソッドを実行できるか判定する。
// 未知のロールは常にfalse。いずれかのルールでパターンがパス全体に
// マッチし、かつメソッドが許可されていればtrue。
func (t *Table) Allows(role Role, resource, method string) bool {
	perms, ok := t.rules[role]
	if !ok {
		return false
	}
	for _, rule := range perms {
		if !rule.re.MatchString(resource) {
			continue
		}
		if _, ok := rule.methods[strings.ToUpper(method)]; ok {
			return true
		}
	}
	return false
}

// DefaultPermissions は組み込みの権限設定を返す。
// 設定ファイルで上書きされない場合に使用する。
func DefaultPermissions() map[Role][]Permission {
	return map[Role][]Permission{
		RoleAdmin: {
			{Resource: "/api/v1/auth/user", Methods: []string{"DELETE"}},
			{Resource: "/api/v1/dashboard/**", Methods: []string{"POST"}},
			{Resource: "/api/v1/qr/**", Methods: []string{"GET", "POST", "PUT", "PATCH"}},
			{Resource: "/api/v1/users/**", Methods: []string{"GET", "PUT", "PATCH", "DELETE"}},
			{Resource: "/api/v1/profile/**", Methods: []string{"GET", "PUT", "PATCH"}},
		},
		RoleUser: {
			{Resource: "/api/v1/auth/user", Methods: []string{"GET", "PUT"}},
			{Resource: "/api/v1/auth/password", Methods: []string{"PUT"}},
			{Resource: "/api/v1/qr/**", Methods: []string{"GET", "POST", "PUT", "PATCH"}},
			{Resource: "/api/v1/users/**", Methods: []string{"GET", "PUT", "PATCH"}},
			{Resource: "/api/v1/profile/**", Methods: []string{"GET", "PUT", "PATCH"}},
		},
	}
}
