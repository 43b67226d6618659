package errors

import (
	"errors"
	"net"
	"strings"

	"gorm.io/gorm"
)

// ErrorInfo 에러 정보 구조
type ErrorInfo struct {
	Code    string // 에러 코드 (codes.go 참조)
	Message string // 사용자 친화적 메시지
}

// ParseError 저장소/네트워크 에러를 사용자 친화적인 메시지와 코드로 변환.
// 내부 SQL 이나 접속 정보는 노출하지 않는다
func ParseError(err error, context string) ErrorInfo {
	if err == nil {
		return ErrorInfo{
			Code:    InternalServerError,
			Message: getDefaultErrorMessage(context),
		}
	}

	errStrLower := strings.ToLower(err.Error())

	// 1. GORM 기본 에러
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorInfo{
			Code:    ResourceNotFound,
			Message: getNotFoundMessage(context),
		}
	}

	// 2. 제약 조건 위반 (SQLite / PostgreSQL)
	if strings.Contains(errStrLower, "duplicate key") || strings.Contains(errStrLower, "unique constraint") {
		return ErrorInfo{
			Code:    ResourceAlreadyExists,
			Message: "This record already exists",
		}
	}
	if strings.Contains(errStrLower, "not null constraint") || strings.Contains(errStrLower, "violates not-null constraint") {
		return ErrorInfo{
			Code:    ValidationRequired,
			Message: "A required field is missing",
		}
	}
	if strings.Contains(errStrLower, "database is locked") || strings.Contains(errStrLower, "sql: database is closed") {
		return ErrorInfo{
			Code:    InternalDatabaseError,
			Message: "Database is busy, please try again",
		}
	}

	// 3. 네트워크/연결 에러
	var netErr net.Error
	if errors.As(err, &netErr) ||
		strings.Contains(errStrLower, "connection refused") ||
		strings.Contains(errStrLower, "no such host") ||
		strings.Contains(errStrLower, "timeout") {
		return ErrorInfo{
			Code:    InternalExternalAPI,
			Message: "External service is unreachable, please try again later",
		}
	}

	// 4. 기본 내부 서버 오류
	return ErrorInfo{
		Code:    InternalServerError,
		Message: getDefaultErrorMessage(context),
	}
}

// getNotFoundMessage context에 따른 Not Found 메시지
func getNotFoundMessage(context string) string {
	contextLower := strings.ToLower(context)

	if strings.Contains(contextLower, "holding") {
		return "Holding not found"
	}
	if strings.Contains(contextLower, "price") {
		return "Price data not found"
	}
	if strings.Contains(contextLower, "transaction") {
		return "Transaction not found"
	}

	return "Requested data not found"
}

// getDefaultErrorMessage context에 따른 기본 에러 메시지
func getDefaultErrorMessage(context string) string {
	contextLower := strings.ToLower(context)

	switch {
	case strings.Contains(contextLower, "create"), strings.Contains(contextLower, "add"):
		return "Failed to save, please try again later"
	case strings.Contains(contextLower, "update"):
		return "Failed to update, please try again later"
	case strings.Contains(contextLower, "delete"):
		return "Failed to delete, please try again later"
	case strings.Contains(contextLower, "import"):
		return "Failed to import file, please try again later"
	case strings.Contains(contextLower, "export"):
		return "Failed to export portfolio, please try again later"
	}

	return "Something went wrong, please try again later"
}

// ParseAndRespond 에러를 파싱하여 응답 반환 (헬퍼 함수)
func ParseAndRespond(c interface{ JSON(int, interface{}) }, statusCode int, err error, context string) {
	errorInfo := ParseError(err, context)
	c.JSON(statusCode, ErrorResponse{
		Success: false,
		Error:   errorInfo.Message,
		Code:    errorInfo.Code,
	})
}
