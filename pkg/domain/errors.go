package domain

import "fmt"

// ValidationError はキュー投入前の検証違反を表します。
// 永続状態に触れる前に検出されるため、キューは常に無変更のままです。
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// NotFoundError は削除対象がキューに存在しないことを表します。
type NotFoundError struct {
	Identifier string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found in queue: %q", e.Identifier)
}

// StorageError はキューファイルの読み書き失敗を表します。
// 発生した操作は即座に中断され、部分的な永続化は仮定されません。
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("queue storage %s failed (%s): %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
