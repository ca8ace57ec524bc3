package bilibili

// apiResponse represents the space upload listing response envelope.
type apiResponse struct {
	Code    int     `json:"code"`
	Message string  `json:"message"`
	Data    apiData `json:"data"`
}

type apiData struct {
	List apiList `json:"list"`
}

type apiList struct {
	VList []apiVideo `json:"vlist"`
}

type apiVideo struct {
	BVID        string `json:"bvid"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Author      string `json:"author"`
	Created     int64  `json:"created"`
}
