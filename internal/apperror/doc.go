// Package apperror はパイプライン全体で使用するタグ付きエラーを提供する。
//
// 各ステージの失敗理由はErrorのKindとErrで内部的に検査できるが、
// HTTPレスポンスにはKindごとに固定されたメッセージのみを返す。
// 認証失敗の詳細（署名・発行者・audience・有効期限のどれが失敗したか）は
// ログにのみ残し、呼び出し元には漏らさない。
package apperror
