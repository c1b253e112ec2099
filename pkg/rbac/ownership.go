package rbac

import (
	"fmt"
	"regexp"
	"strings"
)

// ownershipFamily は所有権チェックの対象となるパス接頭辞の族。
// subjectがnilの族は対象識別子を持たず、常に許可として扱う。
type ownershipFamily struct {
	// prefix はこの族を識別するパス接頭辞。
	prefix string
	// subject は接頭辞直後のパスセグメントを名前付きキャプチャで
	// 抽出する正規表現。nilの場合この族に対象識別子はない。
	subject *regexp.Regexp
}

// defaultFamilies は単一ユーザーにスコープされたリソース族。
// 対象識別子は接頭辞の直後のセグメントに固定されている。
var defaultFamilies = []ownershipFamily{
	{prefix: "/api/v1/users/", subject: regexp.MustCompile(`^/api/v1/users/(?P<subject>[^/]+)`)},
	{prefix: "/api/v1/qr/user/", subject: regexp.MustCompile(`^/api/v1/qr/user/(?P<subject>[^/]+)`)},
	{prefix: "/api/v1/profile", subject: nil},
}

// RequiresOwnership はパスが所有権チェックの対象か判定する。
// 対象外のパスはロール・メソッドチェックのみで認可される。
func RequiresOwnership(path string) bool {
	for _, f := range defaultFamilies {
		if strings.HasPrefix(path, f.prefix) {
			return true
		}
	}
	return false
}

// OwnsResource はパスに埋め込まれた対象識別子が認証済みユーザーの
// ものか判定する。対象識別子を持たないパスは許可として扱う。
// 抽出に失敗した場合は拒否として扱う。
func OwnsResource(userID, path string) bool {
	for _, f := range defaultFamilies {
		if !strings.HasPrefix(path, f.prefix) {
			continue
		}
		if f.subject == nil {
			return true
		}
		m := f.subject.FindStringSubmatch(path)
		if m == nil {
			// 接頭辞の直後にセグメントがない（例: "/api/v1/users/"）
			return true
		}
		subject := m[f.subject.SubexpIndex("subject")]
		return subject == userID
	}
	// どの族にも属さないパスはこのチェックの対象外
	return true
}

// ValidateOwnership は所有権チェック対象の各族が権限テーブルの
// いずれかのリソースパターンに覆われていることを起動時に検証する。
// 族とパターンの食い違いは設定ミスなので即座に失敗させる。
func ValidateOwnership(t *Table) error {
	for _, f := range defaultFamilies {
		// 接頭辞の直下に1セグメント置いた代表パスでマッチを試す
		probe := strings.TrimSuffix(f.prefix, "/") + "/probe"
		if !t.matchesAnyPattern(probe) {
			return fmt.Errorf("所有権チェック対象 %q に対応する権限ルールがありません", f.prefix)
		}
	}
	return nil
}

// matchesAnyPattern はいずれかのロールのいずれかのルールパターンに
// パスがマッチするか判定する。メソッドは考慮しない。
func (t *Table) matchesAnyPattern(path string) bool {
	for _, rules := range t.rules {
		for _, rule := range rules {
			if rule.re.MatchString(path) {
				return true
			}
		}
	}
	return false
}
