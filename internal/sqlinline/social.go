package sqlinline

const QInsertSocialBatch = `--sql 0a7c3e9d-2b64-4f81-a9d5-6e1f8c4b7a20
insert into social_batches (
  id,
  target,
  platforms,
  language,
  status,
  created_at,
  updated_at
) values (
  $1::uuid,
  $2::int,
  $3::text[],
  $4::text,
  'QUEUED',
  now(),
  now()
)
returning created_at;
`

const QSelectSocialBatch = `--sql 7d4b1f82-c9e3-4a56-b0d7-2e8f5a3c1b94
select
  id,
  target,
  platforms,
  language,
  status,
  coalesce(error_message, ''),
  created_at,
  updated_at
from social_batches
where id = $1::uuid
limit 1;
`

const QClaimSocialBatch = `--sql c61e9a4f-3d70-4b2c-8f15-9a7d2e6b0c38
with next_batch as (
    select id
    from social_batches
    where status = 'QUEUED'
       or (status = 'RUNNING' and updated_at < now() - interval '15 minutes')
    order by created_at asc
    for update skip locked
    limit 1
),
updated as (
    update social_batches
    set status = 'RUNNING', updated_at = now()
    where id in (select id from next_batch)
    returning id, target, platforms, language, status, created_at, updated_at
)
select * from updated;
`

const QUpdateSocialBatchStatus = `--sql 2f9b6d13-a4e8-4c70-b5d2-8e3a1c7f9d46
update social_batches
set status = $2::text,
    error_message = nullif($3::text, ''),
    updated_at = now()
where id = $1::uuid;
`

// QCompleteSocialBatch stores the candidates passed as a jsonb array in $2
// and marks the batch SUCCEEDED in one statement.
const QCompleteSocialBatch = `--sql 8e5a2c7b-1f94-4d3e-a6b0-4c9d7e2f1a58
with inserted as (
    insert into social_candidates (
      id,
      batch_id,
      position,
      lane,
      theme,
      platform,
      hook,
      content,
      cta,
      hashtags,
      signature,
      created_at
    )
    select
      gen_random_uuid(),
      $1::uuid,
      c.position,
      c.lane,
      c.theme,
      c.platform,
      c.hook,
      c.content,
      c.cta,
      coalesce(c.hashtags, '{}'::text[]),
      c.signature,
      now()
    from jsonb_to_recordset($2::jsonb) as c(
      position int,
      lane text,
      theme text,
      platform text,
      hook text,
      content text,
      cta text,
      hashtags text[],
      signature text
    )
    returning 1
)
update social_batches
set status = 'SUCCEEDED',
    error_message = null,
    updated_at = now()
where id = $1::uuid;
`

const QSelectSocialCandidates = `--sql 4b1d8f6e-7a25-4c93-9e0f-5d2c8a7b3e61
select
  lane,
  coalesce(theme, ''),
  platform,
  hook,
  content,
  coalesce(cta, ''),
  coalesce(hashtags, '{}'::text[])
from social_candidates
where batch_id = $1::uuid
order by position asc;
`
