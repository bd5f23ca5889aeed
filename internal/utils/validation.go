package utils

import (
	"errors"
	"fmt"

	"github.com/sysu-ecnc-dev/timetabler/backend/internal/domain"
)

// ValidateTimetableResult 在写入数据库之前再检查一遍排课结果
func ValidateTimetableResult(cat *domain.Catalogue, reservations []domain.TimetableReservation) error {
	if cat == nil {
		return errors.New("排课配置为空")
	}

	if len(reservations) != len(cat.Classes) {
		return fmt.Errorf("排课结果中有 %d 个教学班，而配置中有 %d 个", len(reservations), len(cat.Classes))
	}

	placed := make([]bool, len(cat.Classes))
	for _, res := range reservations {
		if res.ClassID < 0 || res.ClassID >= len(cat.Classes) {
			return fmt.Errorf("教学班 %d 不存在", res.ClassID)
		}
		if placed[res.ClassID] {
			return fmt.Errorf("教学班 %d 被安排了多次", res.ClassID)
		}
		placed[res.ClassID] = true

		if res.Day < 0 || res.Day >= cat.Days {
			return fmt.Errorf("教学班 %d 的上课日 %d 超出范围", res.ClassID, res.Day)
		}
		if cat.RoomByID(res.RoomID) == nil {
			return fmt.Errorf("教学班 %d 的教室 %d 不存在", res.ClassID, res.RoomID)
		}

		cc := cat.Classes[res.ClassID]
		if res.StartTime < 0 || res.StartTime+cc.Duration > cat.DayHours {
			return fmt.Errorf("教学班 %d 的上课时间 %d 超出范围（持续 %d 小时，每天 %d 小时）", res.ClassID, res.StartTime, cc.Duration, cat.DayHours)
		}
	}

	return nil
}
