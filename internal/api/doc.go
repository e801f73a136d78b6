// Package api はsummarygateのHTTP境界を提供する。
//
// エンドポイント:
//   - POST /api/auth-google : Google IDトークンをセッショントークンに交換する
//   - POST /api/summarize   : 認証とクォータを経てテキストを要約する
//   - GET  /api/me          : セッショントークンの呼び出し元を返す
//   - GET  /health          : ヘルスチェック
//
// POST専用のエンドポイントに他のメソッドでアクセスした場合は空のボディで405を返す。
package api
