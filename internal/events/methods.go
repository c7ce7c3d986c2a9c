// methods.go — 受支持的通知方法表。
package events

import "strings"

// 通知方法常量。
const (
	MethodAppListUpdated            = "app/list/updated"
	MethodLoginCompleted            = "account/login/completed"
	MethodRateLimitsUpdated         = "account/rateLimits/updated"
	MethodAccountUpdated            = "account/updated"
	MethodBackgroundThread          = "codex/backgroundThread"
	MethodConnected                 = "codex/connected"
	MethodSkillsUpdateAvailable     = "codex/event/skills_update_available"
	MethodError                     = "error"
	MethodAgentMessageDelta         = "item/agentMessage/delta"
	MethodCommandOutputDelta        = "item/commandExecution/outputDelta"
	MethodTerminalInteraction       = "item/commandExecution/terminalInteraction"
	MethodItemCompleted             = "item/completed"
	MethodFileChangeOutputDelta     = "item/fileChange/outputDelta"
	MethodPlanDelta                 = "item/plan/delta"
	MethodReasoningSummaryPartAdded = "item/reasoning/summaryPartAdded"
	MethodReasoningSummaryTextDelta = "item/reasoning/summaryTextDelta"
	MethodReasoningTextDelta        = "item/reasoning/textDelta"
	MethodItemStarted               = "item/started"
	MethodRequestUserInput          = "item/tool/requestUserInput"
	MethodThreadArchived            = "thread/archived"
	MethodThreadNameUpdated         = "thread/name/updated"
	MethodThreadStatusChanged       = "thread/status/changed"
	MethodThreadStarted             = "thread/started"
	MethodTokenUsageUpdated         = "thread/tokenUsage/updated"
	MethodThreadUnarchived          = "thread/unarchived"
	MethodTurnCompleted             = "turn/completed"
	MethodTurnDiffUpdated           = "turn/diff/updated"
	MethodTurnPlanUpdated           = "turn/plan/updated"
	MethodTurnStarted               = "turn/started"
)

var supportedMethods = map[string]struct{}{
	MethodAppListUpdated:            {},
	MethodLoginCompleted:            {},
	MethodRateLimitsUpdated:         {},
	MethodAccountUpdated:            {},
	MethodBackgroundThread:          {},
	MethodConnected:                 {},
	MethodSkillsUpdateAvailable:     {},
	MethodError:                     {},
	MethodAgentMessageDelta:         {},
	MethodCommandOutputDelta:        {},
	MethodTerminalInteraction:       {},
	MethodItemCompleted:             {},
	MethodFileChangeOutputDelta:     {},
	MethodPlanDelta:                 {},
	MethodReasoningSummaryPartAdded: {},
	MethodReasoningSummaryTextDelta: {},
	MethodReasoningTextDelta:        {},
	MethodItemStarted:               {},
	MethodRequestUserInput:          {},
	MethodThreadArchived:            {},
	MethodThreadNameUpdated:         {},
	MethodThreadStatusChanged:       {},
	MethodThreadStarted:             {},
	MethodTokenUsageUpdated:         {},
	MethodThreadUnarchived:          {},
	MethodTurnCompleted:             {},
	MethodTurnDiffUpdated:           {},
	MethodTurnPlanUpdated:           {},
	MethodTurnStarted:               {},
}

// IsSupported 方法是否在支持表内。
func IsSupported(method string) bool {
	_, ok := supportedMethods[method]
	return ok
}

// IsApprovalMethod 审批请求按方法后缀识别, 不枚举具体方法。
func IsApprovalMethod(method string) bool {
	return strings.HasSuffix(method, "requestApproval")
}

// threadScoped 该方法的处理必须带 threadId。
// requestUserInput 按 requestId 把关, thread/started 的 id 在 thread 记录里, 均不在此列。
func threadScoped(method string) bool {
	switch method {
	case MethodBackgroundThread, MethodError,
		MethodAgentMessageDelta, MethodCommandOutputDelta, MethodTerminalInteraction,
		MethodItemStarted, MethodItemCompleted, MethodFileChangeOutputDelta,
		MethodPlanDelta, MethodReasoningSummaryPartAdded, MethodReasoningSummaryTextDelta,
		MethodReasoningTextDelta,
		MethodThreadArchived, MethodThreadUnarchived, MethodThreadNameUpdated,
		MethodThreadStatusChanged, MethodTokenUsageUpdated,
		MethodTurnStarted, MethodTurnCompleted, MethodTurnDiffUpdated, MethodTurnPlanUpdated:
		return true
	}
	return false
}
