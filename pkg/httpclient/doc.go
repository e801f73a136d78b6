// Package httpclient は外部サービスとJSONでHTTP通信を行うクライアントを提供する。
//
// 鍵セット（JWKS）の取得、要約バックエンドへのチャット補完リクエスト、
// Upstash REST APIへのカウンタ操作など、外部サービスとの通信パターンを統一する。
// 2xx以外の応答はStatusErrorとして返し、呼び出し側がステータスを検査できる。
package httpclient
