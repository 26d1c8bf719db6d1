package domain

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/mdobak/go-xerrors"
)

const (
	ErrCodeConfigNotFound      = "config_not_found"
	ErrCodeConfigInvalid       = "config_invalid"
	ErrCodeConfigMissingVideo  = "config_missing_video"
	ErrCodeConfigVideoNotFound = "config_video_not_found"
	ErrCodeSourceUnreadable    = "source_unreadable"
	ErrCodeWriteFailed         = "write_failed"
	ErrCodeCanceled            = "canceled"
)

// ExtractError 是抽帧阶段的结构化错误（带 error_code）。
// Code 只会是 source_unreadable / write_failed / config_invalid 之一。
type ExtractError struct {
	Code string
	Path string
	Err  error
}

func (e *ExtractError) Error() string {
	switch e.Code {
	case ErrCodeSourceUnreadable:
		return fmt.Sprintf("%s：无法读取视频 %q：%v", e.Code, e.Path, e.Err)
	case ErrCodeWriteFailed:
		return fmt.Sprintf("%s：写入 %q 失败：%v", e.Code, e.Path, e.Err)
	default:
		if e.Path != "" {
			return fmt.Sprintf("%s：%q：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：%v", e.Code, e.Err)
	}
}

func (e *ExtractError) Unwrap() error { return e.Err }

// Format 支持 %s / %v / %q；%+v 额外输出 Err 上记录的调用栈（zap 据此生成 errorVerbose）。
func (e *ExtractError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		io.WriteString(s, e.Error())
		if s.Flag('+') {
			if st := xerrors.StackTrace(e.Err); len(st) > 0 {
				io.WriteString(s, "\n")
				io.WriteString(s, st.String())
			}
		}
	case 'q':
		io.WriteString(s, strconv.Quote(e.Error()))
	default:
		io.WriteString(s, e.Error())
	}
}

// ErrorCode 从 error 中提取 error_code；若不是 *ExtractError 则返回空串。
func ErrorCode(err error) string {
	var e *ExtractError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
