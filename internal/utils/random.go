package utils

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/mozillazg/go-pinyin"

	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

var positions = []string{
	"Software Engineer", "QA Engineer", "Accountant", "Sales Representative",
	"HR Specialist", "Product Designer", "Support Engineer", "Analyst",
}

var leaveTypes = []domain.LeaveType{
	domain.LeaveTypeAnnual,
	domain.LeaveTypeSick,
	domain.LeaveTypePersonal,
	domain.LeaveTypeOther,
}

var reasons = []string{
	"Family trip", "Medical appointment", "Moving house", "Personal matters", "Wedding", "Rest",
}

var digits = "0123456789"

func GenerateRandomChineseName(rnd *rand.Rand) string {
	surname := commonSurnames[rnd.Intn(len(commonSurnames))]
	nameLength := rnd.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rnd.Intn(len(commonNameCharacters))]
	}
	return surname + name
}

// GenerateEmailFromChineseName 取每个字拼音的前缀再加上几位数字作为邮箱用户名
func GenerateEmailFromChineseName(rnd *rand.Rand, chineseName string, emailDomainName string) string {
	pinyinArray := pinyin.LazyConvert(chineseName, nil)
	var local strings.Builder

	for _, py := range pinyinArray {
		length := rnd.Intn(len(py)) + 1
		local.WriteString(py[:length])
	}

	digitsLength := rnd.Intn(3) + 1
	for i := 0; i < digitsLength; i++ {
		local.WriteByte(digits[rnd.Intn(len(digits))])
	}

	return local.String() + "@" + emailDomainName
}

func GenerateRandomPosition(rnd *rand.Rand) string {
	return positions[rnd.Intn(len(positions))]
}

func GenerateRandomLeaveType(rnd *rand.Rand) domain.LeaveType {
	return leaveTypes[rnd.Intn(len(leaveTypes))]
}

func GenerateRandomReason(rnd *rand.Rand) string {
	return reasons[rnd.Intn(len(reasons))]
}

// GenerateRandomLeaveRange 生成 now 前后 60 天内、长度 1 到 5 天的日期区间
func GenerateRandomLeaveRange(rnd *rand.Rand, now time.Time) (string, string) {
	start := now.AddDate(0, 0, rnd.Intn(120)-60)
	end := start.AddDate(0, 0, rnd.Intn(5))
	return start.Format(domain.DateLayout), end.Format(domain.DateLayout)
}

func GenerateEmployeeID(seq int) string {
	return fmt.Sprintf("EMP%04d", seq)
}
