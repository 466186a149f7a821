package nats

import (
	"fmt"

	"github.com/spf13/cast"
	"github.com/tidwall/gjson"

	"github.com/utrading/utrading-trade-pnl/internal/models"
	"github.com/utrading/utrading-trade-pnl/pkg/types"
)

// DecodeAccountValue 解析账户数值消息，account_id 与 tag 必填
func DecodeAccountValue(data []byte) (*models.AccountValue, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed json", types.ErrInvalidFill)
	}
	root := gjson.ParseBytes(data)

	v := &models.AccountValue{
		AccountID: root.Get("account_id").String(),
		Tag:       root.Get("tag").String(),
		Value:     cast.ToString(root.Get("value").Value()),
		Currency:  root.Get("currency").String(),
		ModelCode: root.Get("model_code").String(),
	}
	if v.AccountID == "" || v.Tag == "" {
		return nil, fmt.Errorf("%w: account value without account_id or tag", types.ErrInvalidFill)
	}
	return v, nil
}
