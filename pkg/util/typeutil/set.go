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

package typeutil

import (
	"cmp"
	"maps"
	"slices"
)

// Set 为以 map[T]struct{} 实现的集合，在线用户快照即以此类型返回。
// 零值 nil 可读不可写，需要写入时用 NewSet 或 make 创建。
type Set[T comparable] map[T]struct{}

func NewSet[T comparable](elements ...T) Set[T] {
	set := make(Set[T], len(elements))
	set.Insert(elements...)
	return set
}

func (set Set[T]) Insert(elements ...T) {
	for _, elem := range elements {
		set[elem] = struct{}{}
	}
}

// Contain 当且仅当所有给定元素都在集合中时返回 true。
func (set Set[T]) Contain(elements ...T) bool {
	for _, elem := range elements {
		if _, ok := set[elem]; !ok {
			return false
		}
	}
	return true
}

func (set Set[T]) Remove(elements ...T) {
	for _, elem := range elements {
		delete(set, elem)
	}
}

func (set Set[T]) Len() int {
	return len(set)
}

// SortedCollect 按升序返回集合元素，用于输出顺序稳定的用户列表。
// 空集合返回长度为 0 的非 nil 切片，序列化结果为 []。
func SortedCollect[T cmp.Ordered](set Set[T]) []T {
	elements := slices.AppendSeq(make([]T, 0, len(set)), maps.Keys(set))
	slices.Sort(elements)
	return elements
}
