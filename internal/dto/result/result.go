package result

// Result 统一响应结构
type Result struct {
	Success bool        `json:"success"`
	ErrMsg  string      `json:"errorMsg,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Total   int64       `json:"total,omitempty"`
}

// Ok 无数据成功响应
func Ok() Result {
	return Result{Success: true}
}

// OkWithData 带数据成功响应
func OkWithData(data interface{}) Result {
	return Result{Success: true, Data: data}
}

// OkWithList 带列表与总数的成功响应
func OkWithList(data interface{}, total int64) Result {
	return Result{Success: true, Data: data, Total: total}
}

// Fail 失败响应
func Fail(msg string) Result {
	return Result{Success: false, ErrMsg: msg}
}
