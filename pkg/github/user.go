// Copyright (c) 2021-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package github

type User struct {
	ID        int64
	Login     string
	AvatarURL string
}
