// Package session は外部TTL付きキーバリューストアへのアダプタを提供する。
//
// セッションレコード（相関識別子に紐づく署名付きトークン）の読み書きを
// 担当する。キーの不在とストア障害を別のエラーとして区別することで、
// 上位の認証処理が401と500を正しく使い分けられるようにする。
package session
