package model

import "time"

// Use this to know which service a gateway payload belongs to.
type GenericResult struct {
	ResultCode    int    `json:"result_code"`
	ResultMessage string `json:"result_msg"`
	ResultData    struct {
		Service Service `json:"service"`
	} `json:"result_data"`
}

type ParsedResult[T any] struct {
	ResultCode    int    `json:"result_code"`
	ResultMessage string `json:"result_msg"`
	ResultData    T      `json:"result_data"`
}

type Request struct {
	Service string `json:"service"`
	Token   string `json:"token"`
}

// ################################
// Service.Connect

type ConnectRequest struct {
	Request
	ClientName string `json:"client_name"`
}

type ConnectResponse struct {
	Service string `json:"service"`
	Token   string `json:"token"`
	Gateway string `json:"gateway"`
	Version string `json:"version"`
}

// ################################

// ################################
// Service.Telegram

// TelegramEvent is a group telegram observed on the bus, already decoded
// by the gateway's data-point codec.
type TelegramEvent struct {
	Service     string       `json:"service"`
	Destination GroupAddress `json:"destination"`
	Source      string       `json:"source"`
	Dpt         DptName      `json:"dpt"`
	Value       string       `json:"value"`
	Direction   Direction    `json:"direction"`
}

type TelegramList struct {
	Count   int             `json:"count"`
	Service string          `json:"service"`
	List    []TelegramEvent `json:"list"`
}

// ################################

// ################################
// Service.GroupRead / Service.GroupWrite

type GroupReadRequest struct {
	Request
	Destination GroupAddress `json:"destination"`
}

type GroupWriteRequest struct {
	Request
	Destination GroupAddress `json:"destination"`
	Dpt         DptName      `json:"dpt"`
	Value       string       `json:"value"`
}

type GroupWriteResponse struct {
	Service     string       `json:"service"`
	Destination GroupAddress `json:"destination"`
	Accepted    bool         `json:"accepted"`
}

// ################################

// Reading is one persisted measurement sample.
type Reading struct {
	Id         int64     `json:"id"`
	TimeStamp  time.Time `json:"timestamp"`
	Unit       string    `json:"unit_of_measurement"`
	Value      string    `json:"value"`
	Identifier string    `json:"identifier"`
	Slug       string    `json:"slug"`
}

type Readings []Reading
