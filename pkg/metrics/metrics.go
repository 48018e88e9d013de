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

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// onlineNamespace 是当前项目所有 Prometheus 指标使用的命名空间。
	onlineNamespace = "online"

	registrySubsystem = "registry"
	httpSubsystem     = "http"

	operationLabelName = "op"
	resultLabelName    = "result"
	methodLabelName    = "method"
	pathLabelName      = "path"
	codeLabelName      = "code"

	LoginOp     = "login"
	HeartbeatOp = "heartbeat"
	LogoutOp    = "logout"
	ValidateOp  = "validate"

	SuccessLabel  = "success"
	FailLabel     = "fail"
	NotFoundLabel = "not_found"
)

var (
	// buckets 为请求耗时直方图的桶划分，单位为秒。
	buckets = prometheus.ExponentialBuckets(0.0005, 2, 16)

	// OnlineUsers 为当前在线用户数，即 OnlineCount 的值。
	OnlineUsers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: onlineNamespace,
			Subsystem: registrySubsystem,
			Name:      "online_users",
			Help:      "number of distinct users backing at least one live session",
		})

	// OnlineSessions 为当前存活的会话数，同一用户的多个会话分别计数。
	OnlineSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: onlineNamespace,
			Subsystem: registrySubsystem,
			Name:      "online_sessions",
			Help:      "number of live sessions",
		})

	SessionOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: onlineNamespace,
			Subsystem: registrySubsystem,
			Name:      "session_operations_total",
			Help:      "count of registry operations by type and result",
		}, []string{operationLabelName, resultLabelName})

	SessionsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: onlineNamespace,
			Subsystem: registrySubsystem,
			Name:      "sessions_expired_total",
			Help:      "count of sessions evicted by the expiry sweep",
		})

	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: onlineNamespace,
			Subsystem: registrySubsystem,
			Name:      "sweep_duration_seconds",
			Help:      "time spent holding the registry lock during one expiry sweep",
			Buckets:   buckets,
		})

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: onlineNamespace,
			Subsystem: httpSubsystem,
			Name:      "request_duration_seconds",
			Help:      "latency of http requests",
			Buckets:   buckets,
		}, []string{methodLabelName, pathLabelName, codeLabelName})

	registerOnce sync.Once
)

// Register 注册当前定义的所有指标，重复调用只生效一次。
func Register(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(OnlineUsers)
		r.MustRegister(OnlineSessions)
		r.MustRegister(SessionOperations)
		r.MustRegister(SessionsExpired)
		r.MustRegister(SweepDuration)
		r.MustRegister(HTTPRequestDuration)
	})
}
