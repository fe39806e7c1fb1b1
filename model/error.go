package model

import (
	"fmt"
	"regexp"

	log "github.com/sirupsen/logrus"
)

const (
	ErrorParams          = 100001
	ErrorEmptyId         = 100002
	ErrorNewRepo         = 100003
	ErrorDB              = 100004
	ErrorProfileNotFound = 100005
	ErrorLLM             = 100006
	ErrorInvalidQuery    = 100007
	ErrorPlanUnknown     = 100008
)

var ErrorMessages = map[int]string{
	ErrorParams:          "参数错误",
	ErrorEmptyId:         "id 为空",
	ErrorNewRepo:         "新建 repo 失败",
	ErrorDB:              "db error",
	ErrorProfileNotFound: "用户画像不存在",
	ErrorLLM:             "模型调用失败",
	ErrorInvalidQuery:    "检索查询不合法",
	ErrorPlanUnknown:     "未知的订阅档位",
}

type Error struct {
	Code       int    `json:"code"`
	Message    string `json:"message"`
	InnerError error  `json:"inner_error"`
}

func (err Error) Error() string {
	return err.Message
}

func (err Error) String() string {
	return err.InnerError.Error()
}

func NewError(code int, innerError error) *Error {
	if innerError != nil {
		var re = regexp.MustCompile(`[\n\t]+`)
		innerErrorString := re.ReplaceAllString(fmt.Sprintf("%+v", innerError), " ")
		log.Errorf("NewError code:%d, message:%s, innerError:%+v\n", code, ErrorMessages[code], innerErrorString)
	}
	return &Error{
		Code:       code,
		Message:    ErrorMessages[code],
		InnerError: nil,
	}
}

func NewErrorWithMessage(code int, message string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		InnerError: nil,
	}
}
