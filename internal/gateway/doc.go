// Package gateway はAPIゲートウェイサービスの内部実装を提供する。
//
// マルチサービス構成の唯一のHTTP入口であり、リクエストの相関付け、
// セッションストア経由の認証、ロールベース認可、ルートテーブルによる
// ディスパッチとパス書き換え、バックエンドへの転送とエラー正規化を担当する。
// セキュリティの境界線として、検証済みIdentityから導出した信頼境界
// ヘッダーのみをバックエンドへ伝える。
package gateway
