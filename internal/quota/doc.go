// Package quota はユーザーごと・日ごとの呼び出し回数を管理する。
//
// カウンタのキーは "rl:<subject>:<YYYY-MM-DD>"（UTCの日付）で、
// インクリメントと24時間の有効期限設定を1回のアトミックな操作で行う。
// 同一ユーザーの同時リクエストの直列化はストア側が担う。
//
// ストアには以下の実装がある:
//   - RedisStore: go-redisのMULTI/EXECでINCRとEXPIREを実行する
//   - UpstashStore: Upstash REST APIの/multi-execエンドポイントを使う
//   - SQLiteStore: UPSERT ... RETURNINGの単一文でカウントする
//   - MemoryStore: プロセス内のカウンタ（開発・テスト用）
//
// ストアに到達できない場合はKindQuotaBackendのエラーを返し、
// 利用回数0として扱うことはしない。
package quota
