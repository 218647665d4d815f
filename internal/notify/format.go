package notify

import (
	"fmt"

	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
)

// Format 有结构化数据时按类型生成文案，否则直接使用服务端的 message
func Format(n domain.Notification) string {
	if n.Data == nil {
		return n.Message
	}
	switch n.Type {
	case domain.KindNewLeaveRequest:
		return fmt.Sprintf("%s requested %s leave", n.Data.EmployeeName, n.Data.LeaveType)
	case domain.KindStatusApproved:
		return fmt.Sprintf("Your %s leave was APPROVED", n.Data.LeaveType)
	case domain.KindStatusRejected:
		return fmt.Sprintf("Your %s leave was REJECTED", n.Data.LeaveType)
	default:
		return n.Message
	}
}

func Icon(kind domain.NotificationKind) string {
	switch kind {
	case domain.KindNewLeaveRequest:
		return "📋"
	case domain.KindLeaveStatusUpdated:
		return "🔄"
	case domain.KindStatusApproved:
		return "✅"
	case domain.KindStatusRejected:
		return "❌"
	default:
		return "💡"
	}
}

func Color(kind domain.NotificationKind) string {
	switch kind {
	case domain.KindNewLeaveRequest:
		return "#3498db"
	case domain.KindLeaveStatusUpdated:
		return "#f39c12"
	case domain.KindStatusApproved:
		return "#2ecc71"
	case domain.KindStatusRejected:
		return "#e74c3c"
	default:
		return "#95a5a6"
	}
}
