package contracts

// Pipeline Stage 정의 (SSOT)
// 모든 로그, 감사 기록, 결과 JSON 키에서 이 상수를 사용해야 함
//
// 파이프라인 흐름:
//   Researcher → Signal → Risk → (veto? → Supervisor) : (Execution → Supervisor)

// Stage represents a pipeline stage. The value is the wire key used in results.
type Stage string

const (
	// StageResearcher: 뉴스 이벤트 해석, 방향성(bias)과 신뢰도 산출
	StageResearcher Stage = "researcher"

	// StageSignal: 방향성을 거래 제안(action, size, entry/stop/target)으로 변환
	StageSignal Stage = "signal_agent"

	// StageRisk: 포지션 한도 검사, veto 결정 (run 당 정확히 1회)
	StageRisk Stage = "risk_manager"

	// StageExecution: 집행 계획 (veto 시 생략)
	StageExecution Stage = "execution_agent"

	// StageSupervisor: 완료된 단계 감사, 항상 실행
	StageSupervisor Stage = "supervisor"
)

// String returns the stage wire key
func (s Stage) String() string {
	return string(s)
}

// ShortName returns abbreviated stage name (e.g., "S1", "S5")
func (s Stage) ShortName() string {
	switch s {
	case StageResearcher:
		return "S1"
	case StageSignal:
		return "S2"
	case StageRisk:
		return "S3"
	case StageExecution:
		return "S4"
	case StageSupervisor:
		return "S5"
	default:
		return "UNKNOWN"
	}
}

// DisplayName returns the human readable agent name
func (s Stage) DisplayName() string {
	switch s {
	case StageResearcher:
		return "Researcher"
	case StageSignal:
		return "Signal Agent"
	case StageRisk:
		return "Risk Manager"
	case StageExecution:
		return "Execution Agent"
	case StageSupervisor:
		return "Supervisor"
	default:
		return "Unknown"
	}
}

// MessageType returns the message type emitted when the stage completes
func (s Stage) MessageType() string {
	switch s {
	case StageResearcher:
		return "RESEARCH_SIGNAL"
	case StageSignal:
		return "TRADE_PROPOSAL"
	case StageRisk:
		return "RISK_DECISION"
	case StageExecution:
		return "EXECUTION_PLAN"
	case StageSupervisor:
		return "AUDIT_COMPLETE"
	default:
		return "UNKNOWN"
	}
}

// AllStages returns all pipeline stages in order
func AllStages() []Stage {
	return []Stage{
		StageResearcher,
		StageSignal,
		StageRisk,
		StageExecution,
		StageSupervisor,
	}
}

// IsValidStage checks if a stage string is valid
func IsValidStage(s string) bool {
	for _, stage := range AllStages() {
		if string(stage) == s {
			return true
		}
	}
	return false
}
