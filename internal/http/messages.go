package http

// Client-facing messages. The storefront shows these verbatim.
const (
	msgMissingParams    = "필수 파라미터가 누락되었습니다."
	msgInvalidBody      = "요청 본문을 해석할 수 없습니다."
	msgMissingToken     = "인증 토큰이 필요합니다."
	msgInvalidToken     = "유효하지 않은 인증 토큰입니다."
	msgConfiguration    = "서버 설정 오류가 발생했습니다."
	msgApprovalFailed   = "결제 승인에 실패했습니다."
	msgApproved         = "결제가 성공적으로 승인되었습니다."
	msgAlreadyApproved  = "이미 승인된 결제입니다."
	msgInProgress       = "결제 승인이 이미 진행 중입니다."
	msgReferenceInUse   = "이미 사용된 주문 번호입니다."
	msgUnexpected       = "결제 승인 처리 중 오류가 발생했습니다."
	msgUnknown          = "알 수 없는 오류"
	msgInternal         = "서버 내부 오류가 발생했습니다."
	msgRateLimited      = "요청이 너무 많습니다. 잠시 후 다시 시도해 주세요."
	msgFurnitureMissing = "가구를 찾을 수 없습니다."
	msgInvalidID        = "잘못된 가구 ID입니다."
	msgFurnitureFields  = "모든 필수 항목을 입력해주세요."
)
