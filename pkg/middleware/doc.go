// Package middleware はゲートウェイのリクエストパイプラインを構成する
// Ginミドルウェアを提供する。
//
// 相関識別子の確立（Correlate）、セッションストア経由の認証
// （Authenticate）、セッションの遅延発行（EnsureSession）、
// ロールベース認可（Authorize）の各段に加え、パニックリカバリと
// CORS、全失敗経路で共通のエラーエンベロープを含む。
// 各段は失敗時に残りの段を短絡させる。
package middleware
