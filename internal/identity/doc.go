// Package identity は外部IDプロバイダー（Google）が発行したIDトークンを検証する。
//
// 署名検証に使う公開鍵はJWKSエンドポイントから取得し、KeySetがTTL付きで
// キャッシュする。未知の鍵IDを見つけた場合は鍵のローテーションとみなし、
// 最小間隔を空けて一度だけ再取得する。
//
// 検証に失敗した場合、原因（署名・発行者・audience・有効期限・鍵ID）は
// エラーチェーンに保持されるが、Kindは常にKindUnauthenticatedになる。
package identity
