// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merr

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"
)

type ErrSuite struct {
	suite.Suite
}

func (s *ErrSuite) TestCode() {
	err := WrapErrSessionNotFound("sess_1")
	errors.Wrap(err, "failed to heartbeat")
	s.ErrorIs(err, ErrSessionNotFound)
	s.Equal(Code(ErrSessionNotFound), Code(err))
	s.Equal(int32(0), Code(nil))
	s.Equal(TimeoutCode, Code(context.DeadlineExceeded))
	s.Equal(CanceledCode, Code(context.Canceled))
	s.Equal(errUnexpected.errCode, Code(errUnexpected))
	s.Equal(errUnexpected.errCode, Code(errors.New("plain")))

	sameCodeErr := newPresenceError("new error", ErrSessionNotFound.errCode, false)
	s.True(sameCodeErr.Is(ErrSessionNotFound))
}

func (s *ErrSuite) TestWrap() {
	// Service 相关错误。
	s.ErrorIs(WrapErrServiceNotReady("initializing"), ErrServiceNotReady)
	s.ErrorIs(WrapErrServiceInternal("never throw out"), ErrServiceInternal)
	s.ErrorIs(WrapErrServiceStopped("registry", "sweep"), ErrServiceStopped)

	// 参数相关错误。
	s.ErrorIs(WrapErrParameterInvalidRange(1, 65535, 0, "port"), ErrParameterInvalid)
	s.ErrorIs(WrapErrParameterInvalidMsg("bad value %d", 3), ErrParameterInvalid)
	s.ErrorIs(WrapErrParameterMissing("user_id", "login"), ErrParameterMissing)

	// restful 相关错误。
	s.ErrorIs(WrapErrIncorrectParameterFormat("unexpected EOF"), ErrIncorrectParameterFormat)

	// 会话相关错误。
	s.ErrorIs(WrapErrSessionNotFound("sess_x", "heartbeat"), ErrSessionNotFound)
	s.ErrorIs(WrapErrSessionIDConflict("sess_x"), ErrSessionIDConflict)
}

func (s *ErrSuite) TestWrapMessage() {
	err := WrapErrParameterMissing("user_id")
	s.Equal("missing parameter[missing_param=user_id]", err.Error())

	err = WrapErrIncorrectParameterFormat("unexpected EOF")
	s.Equal("can only accept json format request: unexpected EOF", Message(err))
	s.Equal("", Message(nil))
}

func (s *ErrSuite) TestErrorType() {
	s.True(IsInputError(WrapErrParameterMissing("user_id")))
	s.True(IsInputError(errors.Wrap(ErrIncorrectParameterFormat, "login")))
	s.False(IsInputError(WrapErrSessionNotFound("sess_x")))
	s.False(IsInputError(nil))
	s.Equal(SystemError, GetErrorType(errors.New("plain")))
	s.Equal(InputError, GetErrorType(errors.Wrap(WrapErrParameterInvalidMsg("empty"), "login")))
	s.Equal("input_error", InputError.String())
}

func (s *ErrSuite) TestRetryable() {
	s.True(IsRetryableErr(ErrServiceNotReady))
	s.True(IsRetryableErr(WrapErrSessionIDConflict("sess_x")))
	s.False(IsRetryableErr(ErrSessionNotFound))
	s.False(IsRetryableErr(errors.New("plain")))
	s.False(IsRetryableErr(WrapErrServiceStopped("online-registry")))
}

func (s *ErrSuite) TestCombine() {
	var (
		errFirst  = errors.New("first")
		errSecond = errors.New("second")
		errThird  = errors.New("third")
	)

	err := Combine(errFirst, errSecond)
	s.True(errors.Is(err, errFirst))
	s.True(errors.Is(err, errSecond))
	s.False(errors.Is(err, errThird))

	s.Equal("first: second", err.Error())
}

func (s *ErrSuite) TestCombineWithNil() {
	err := errors.New("non-nil")

	err = Combine(nil, err)
	s.NotNil(err)
}

func (s *ErrSuite) TestCombineOnlyNil() {
	err := Combine(nil, nil)
	s.Nil(err)
}

func (s *ErrSuite) TestCombineCode() {
	err := Combine(WrapErrParameterMissing("user_id"), WrapErrSessionNotFound("sess_1"))
	s.Equal(Code(ErrSessionNotFound), Code(err))
}

func TestErrors(t *testing.T) {
	suite.Run(t, new(ErrSuite))
}
