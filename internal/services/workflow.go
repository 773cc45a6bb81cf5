package services

import "github.com/bionicotaku/lingo-services-coursevideo/internal/models/po"

// workflowTransitions 是编辑工作流唯一的迁移表。
// published 只能回到 draft，重新发布必须再走一遍 review → approved。
var workflowTransitions = map[po.WorkflowStatus][]po.WorkflowStatus{
	po.WorkflowDraft:     {po.WorkflowReview},
	po.WorkflowReview:    {po.WorkflowDraft, po.WorkflowApproved},
	po.WorkflowApproved:  {po.WorkflowReview, po.WorkflowPublished},
	po.WorkflowPublished: {po.WorkflowDraft},
}

// AllowedTransitions 返回 from 状态可迁移的目标（副本，调用方可修改）。
func AllowedTransitions(from po.WorkflowStatus) []po.WorkflowStatus {
	targets := workflowTransitions[from]
	out := make([]po.WorkflowStatus, len(targets))
	copy(out, targets)
	return out
}

// CanTransition 判断 from → to 是否在迁移表中。同状态迁移不合法。
func CanTransition(from, to po.WorkflowStatus) bool {
	for _, target := range workflowTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// RequiresAdmin 判断目标状态是否只能由管理员设置。
func RequiresAdmin(to po.WorkflowStatus) bool {
	return to == po.WorkflowApproved || to == po.WorkflowPublished
}
