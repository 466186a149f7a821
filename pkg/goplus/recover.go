package goplus

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/utrading/utrading-trade-pnl/pkg/logger"
)

// Recover 捕获 panic 并记录调用栈，需 defer 调用
func Recover() {
	if r := recover(); r != nil {
		logPanic(r)
	}
}

// RecoverErr 捕获 panic 并转换为 error 写入 errp，需 defer 调用
func RecoverErr(errp *error) {
	if r := recover(); r != nil {
		logPanic(r)
		if errp != nil {
			*errp = fmt.Errorf("panic: %v", r)
		}
	}
}

func logPanic(r any) {
	const maxDepth = 32
	callers := make([]string, 0, maxDepth)
	for i := 2; i <= maxDepth; i++ {
		_, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		callers = append(callers, fmt.Sprintf("%s:%d", file, line))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("panic: %v\ncallers:\n", r))
	for _, c := range callers {
		sb.WriteString(c)
		sb.WriteByte('\n')
	}

	logger.Error().Msg(sb.String())
}
