// Package summarize は認証・クォータで保護された要約呼び出しを提供する。
//
// Gatewayは1リクエストごとに次の順でステージを進め、失敗したステージで打ち切る。
//
//	入力検証 → 認証 → クォータ消費 → プロンプト組み立て → バックエンド呼び出し → 要約の抽出
//
// 入力検証は副作用がないため最初に行い、空のテキストは認証状態にかかわらず400になる。
// 認証は必ずクォータ消費より前に行う。同一テキストでも呼び出しごとに
// クォータを1消費し、バックエンドを1回呼び出す。
package summarize
