// Package session はファーストパーティのセッショントークンの発行と検証を行う。
//
// セッショントークンはHS256で署名されたJWTで、sub・email・iat・expのみを含む。
// サーバーはセッション状態を保持せず、有効性は署名と時刻のみから判定する。
package session
