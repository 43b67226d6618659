package errors

// 에러 코드 상수 정의
// 형식: CATEGORY_SPECIFIC_DETAIL
// 프론트엔드에서 이 코드를 기반으로 메시지를 매핑함

const (
	// ==================== 검증 (VALIDATION_) ====================
	ValidationInvalidInput = "VALIDATION_INVALID_INPUT" // 잘못된 입력
	ValidationRequired     = "VALIDATION_REQUIRED"      // 필수 항목

	// ==================== 리소스 (RESOURCE_) ====================
	ResourceNotFound      = "RESOURCE_NOT_FOUND"      // 리소스 없음
	ResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS" // 이미 존재

	// ==================== 금 시세 (PRICE_) ====================
	PriceUnavailable   = "PRICE_UNAVAILABLE"    // 시세 조회 실패
	PriceInvalidWeight = "PRICE_INVALID_WEIGHT" // 잘못된 무게

	// ==================== 포트폴리오 (HOLDING_) ====================
	HoldingNotFound = "HOLDING_NOT_FOUND" // 보유 내역 없음
	HoldingInvalid  = "HOLDING_INVALID"   // 잘못된 보유 내역

	// ==================== 가져오기/내보내기 (IMPORT_, EXPORT_) ====================
	ImportFileRequired    = "IMPORT_FILE_REQUIRED"    // 파일 없음
	ImportUnsupportedType = "IMPORT_UNSUPPORTED_TYPE" // 지원하지 않는 파일 형식
	ImportEmptyFile       = "IMPORT_EMPTY_FILE"       // 헤더 없음
	ExportArchiveDisabled = "EXPORT_ARCHIVE_DISABLED" // 보관소 미설정
	ExportArchiveFailed   = "EXPORT_ARCHIVE_FAILED"   // 업로드 실패

	// ==================== 내부 오류 (INTERNAL_) ====================
	InternalServerError   = "INTERNAL_SERVER_ERROR"   // 서버 오류
	InternalDatabaseError = "INTERNAL_DATABASE_ERROR" // DB 오류
	InternalExternalAPI   = "INTERNAL_EXTERNAL_API"   // 외부 API 오류
)
